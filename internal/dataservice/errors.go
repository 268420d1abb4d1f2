package dataservice

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks a failed record store call, e.g. I/O failure or
// lock contention. The underlying error is wrapped alongside it.
var ErrStoreUnavailable = errors.New("record store unavailable")

func storeError(action string, err error) error {
	return fmt.Errorf("%s: %w: %w", action, ErrStoreUnavailable, err)
}

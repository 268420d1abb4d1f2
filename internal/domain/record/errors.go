// Package record defines tracked work records, their validation and the
// per-week aggregate derived from them.
package record

import "errors"

var (
	// ErrRecordNotFound is returned for an id with no stored record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidInput wraps every field validation failure.
	ErrInvalidInput = errors.New("invalid record input")
)

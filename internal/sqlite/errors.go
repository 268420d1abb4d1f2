package sqlite

import (
	"fmt"
	"strings"

	"github.com/rpggio/tally/internal/repository"
)

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// wrapError annotates err with the failed action and marks lock contention
// with repository.ErrBusy.
func wrapError(action string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("failed to %s: %w: %w", action, repository.ErrBusy, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

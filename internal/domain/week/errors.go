package week

import "errors"

var (
	// ErrWeekNotFound indicates the week doesn't exist.
	ErrWeekNotFound = errors.New("week not found")
	// ErrDuplicateLabel indicates another week already uses the label.
	ErrDuplicateLabel = errors.New("week label already exists")
	// ErrInvalidInput indicates invalid week input.
	ErrInvalidInput = errors.New("invalid week input")
)

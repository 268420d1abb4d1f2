package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/tally/internal/dataservice"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
	"github.com/rpggio/tally/internal/rows"
	"github.com/rpggio/tally/internal/timer"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) CodeValue() string {
	return e.Code
}

func (e *APIError) MessageValue() string {
	return e.Message
}

func (e *APIError) DetailsValue() any {
	return e.Details
}

func (e *APIError) RecoveryHintValue() string {
	return e.RecoveryHint
}

// MapError maps domain errors to MCP error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, record.ErrRecordNotFound):
		return &APIError{Code: "RECORD_NOT_FOUND", Message: "record not found", RecoveryHint: "List the week's records to find a valid id"}
	case errors.Is(err, week.ErrWeekNotFound):
		return &APIError{Code: "WEEK_NOT_FOUND", Message: "week not found", RecoveryHint: "Call list_weeks"}
	case errors.Is(err, week.ErrDuplicateLabel):
		return &APIError{Code: "DUPLICATE_LABEL", Message: "a week with this label already exists", RecoveryHint: "Choose another label"}
	case errors.Is(err, record.ErrInvalidInput), errors.Is(err, week.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, rows.ErrIndexOutOfRange):
		return &APIError{Code: "OUT_OF_RANGE", Message: err.Error(), RecoveryHint: "Check the week's total row count"}
	case errors.Is(err, rows.ErrChunkLoadFailure):
		return &APIError{Code: "CHUNK_LOAD_FAILED", Message: "rows could not be loaded", Details: err.Error(), RecoveryHint: "Retry shortly"}
	case errors.Is(err, dataservice.ErrStoreUnavailable):
		return &APIError{Code: "STORE_UNAVAILABLE", Message: "record store unavailable", Details: err.Error(), RecoveryHint: "Retry shortly"}
	case errors.Is(err, timer.ErrTimerRunning):
		return &APIError{Code: "TIMER_RUNNING", Message: "timer already running for record"}
	case errors.Is(err, timer.ErrNoTimer):
		return &APIError{Code: "NO_TIMER", Message: "no timer for record", RecoveryHint: "Call start_timer first"}
	case errors.Is(err, timer.ErrPaused), errors.Is(err, timer.ErrNotPaused):
		return &APIError{Code: "TIMER_STATE", Message: err.Error()}
	default:
		return nil
	}
}

// toolError returns the mapped APIError for err, or err itself.
func toolError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}

package record

import (
	"fmt"
	"time"
)

const (
	// MinScore and MaxScore bound a rated record. Zero means unscored.
	MinScore = 1
	MaxScore = 5

	dateLayout = "2006-01-02"
)

// ValidateFields validates fields for a new record.
func ValidateFields(f Fields) error {
	if err := validateDuration(f.DurationSeconds); err != nil {
		return err
	}
	if f.TimeLimitSeconds < 0 {
		return fmt.Errorf("%w: time limit must not be negative", ErrInvalidInput)
	}
	if err := validateScore(f.Score); err != nil {
		return err
	}
	if err := validateDate(f.DateAudited); err != nil {
		return err
	}
	return validateSpan(f.TimeBegin, f.TimeEnd)
}

// ValidateChanges validates a partial update.
func ValidateChanges(c Changes) error {
	if c.DurationSeconds != nil {
		if err := validateDuration(*c.DurationSeconds); err != nil {
			return err
		}
	}
	if c.TimeLimitSeconds != nil && *c.TimeLimitSeconds < 0 {
		return fmt.Errorf("%w: time limit must not be negative", ErrInvalidInput)
	}
	if c.Score != nil {
		if err := validateScore(*c.Score); err != nil {
			return err
		}
	}
	if c.DateAudited != nil {
		if err := validateDate(*c.DateAudited); err != nil {
			return err
		}
	}
	return validateSpan(c.TimeBegin, c.TimeEnd)
}

// ClampScore forces a rated score into [MinScore, MaxScore].
func ClampScore(score int) int {
	return max(MinScore, min(MaxScore, score))
}

func validateDuration(seconds int64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	}
	return nil
}

func validateScore(score int) error {
	if score != 0 && (score < MinScore || score > MaxScore) {
		return fmt.Errorf("%w: score %d outside %d..%d", ErrInvalidInput, score, MinScore, MaxScore)
	}
	return nil
}

func validateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("%w: date audited %q is not YYYY-MM-DD", ErrInvalidInput, s)
	}
	return nil
}

func validateSpan(begin, end *time.Time) error {
	if begin != nil && end != nil && end.Before(*begin) {
		return fmt.Errorf("%w: time end precedes time begin", ErrInvalidInput)
	}
	return nil
}

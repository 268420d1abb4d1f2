package week

import (
	"fmt"
	"strings"
)

// ValidateCreate validates fields required to create a week.
func ValidateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidInput)
	}
	if req.EndDate.Before(req.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}
	return validateBonus(req.Bonus)
}

// ApplyUpdate validates req and applies it to w.
func ApplyUpdate(w Week, req UpdateRequest) (Week, error) {
	if req.Label != nil {
		if strings.TrimSpace(*req.Label) == "" {
			return Week{}, fmt.Errorf("%w: label is required", ErrInvalidInput)
		}
		w.Label = *req.Label
	}
	if req.StartDate != nil {
		w.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		w.EndDate = *req.EndDate
	}
	if w.EndDate.Before(w.StartDate) {
		return Week{}, fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	}
	if req.IsBonus != nil {
		w.IsBonus = *req.IsBonus
	}
	if req.Bonus != nil {
		if err := validateBonus(*req.Bonus); err != nil {
			return Week{}, err
		}
		w.Bonus = *req.Bonus
	}
	return w, nil
}

func validateBonus(b BonusRules) error {
	if b.PayRate < 0 || b.AdditionalAmount < 0 || b.TaskThreshold < 0 {
		return fmt.Errorf("%w: bonus values must not be negative", ErrInvalidInput)
	}
	return nil
}

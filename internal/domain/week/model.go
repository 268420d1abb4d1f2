package week

import "time"

// Week is a date-bounded grouping of records. It is the ordering domain for
// grid chunks and the scope for cache invalidation and aggregates.
type Week struct {
	ID        int64      `json:"id"`
	Label     string     `json:"label"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	IsBonus   bool       `json:"is_bonus"`
	Bonus     BonusRules `json:"bonus"`
	CreatedAt time.Time  `json:"created_at"`
}

// BonusRules configures bonus pay for a week.
type BonusRules struct {
	UseGlobal        bool    `json:"use_global"`
	PayRate          float64 `json:"pay_rate,omitempty"`
	TaskThreshold    int     `json:"task_threshold,omitempty"`
	AdditionalAmount float64 `json:"additional_amount,omitempty"`
}

// CreateRequest defines week creation inputs.
type CreateRequest struct {
	Label     string
	StartDate time.Time
	EndDate   time.Time
	IsBonus   bool
	Bonus     BonusRules
}

// UpdateRequest defines a partial week update. Nil fields are left unchanged.
type UpdateRequest struct {
	Label     *string
	StartDate *time.Time
	EndDate   *time.Time
	IsBonus   *bool
	Bonus     *BonusRules
}

// Contains reports whether t falls inside the week boundary.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.StartDate) && !t.After(w.EndDate)
}

package record

import "time"

// Record is a single time-tracked work item. Records are owned by the store;
// cached copies are snapshots and never authoritative.
type Record struct {
	ID               int64      `json:"id"`
	WeekID           int64      `json:"week_id"`
	AttemptID        string     `json:"attempt_id,omitempty"`
	DurationSeconds  int64      `json:"duration_seconds"`
	ProjectID        string     `json:"project_id,omitempty"`
	ProjectName      string     `json:"project_name,omitempty"`
	OperationID      string     `json:"operation_id,omitempty"`
	TimeLimitSeconds int64      `json:"time_limit_seconds,omitempty"`
	DateAudited      string     `json:"date_audited,omitempty"`
	Score            int        `json:"score"`
	Feedback         string     `json:"feedback,omitempty"`
	Locale           string     `json:"locale,omitempty"`
	BonusPaid        bool       `json:"bonus_paid"`
	TimeBegin        *time.Time `json:"time_begin,omitempty"`
	TimeEnd          *time.Time `json:"time_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Duration returns the tracked time as a time.Duration.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// Fields holds the values for a new record.
type Fields struct {
	AttemptID        string
	DurationSeconds  int64
	ProjectID        string
	ProjectName      string
	OperationID      string
	TimeLimitSeconds int64
	DateAudited      string
	Score            int
	Feedback         string
	Locale           string
	BonusPaid        bool
	TimeBegin        *time.Time
	TimeEnd          *time.Time
}

// Changes is a partial update. Nil fields are left unchanged.
type Changes struct {
	AttemptID        *string
	DurationSeconds  *int64
	ProjectID        *string
	ProjectName      *string
	OperationID      *string
	TimeLimitSeconds *int64
	DateAudited      *string
	Score            *int
	Feedback         *string
	Locale           *string
	BonusPaid        *bool
	TimeBegin        *time.Time
	TimeEnd          *time.Time
}

// IsEmpty reports whether the change set modifies nothing.
func (c Changes) IsEmpty() bool {
	return c == Changes{}
}

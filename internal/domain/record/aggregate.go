package record

import "time"

// HighScoreThreshold is the minimum score counted as a high score.
const HighScoreThreshold = 3

// Metrics are derived from every record in a week.
type Metrics struct {
	TotalRecords         int     `json:"total_records"`
	ScoredRecords        int     `json:"scored_records"`
	TotalDurationSeconds int64   `json:"total_duration_seconds"`
	AverageScore         float64 `json:"average_score"`
	MinScore             int     `json:"min_score"`
	MaxScore             int     `json:"max_score"`
	HighScoreCount       int     `json:"high_score_count"`
	BonusPaidCount       int     `json:"bonus_paid_count"`
}

// Aggregate is a snapshot of Metrics for one week. It is invalid as soon as
// any record in the week changes.
type Aggregate struct {
	WeekID     int64     `json:"week_id"`
	ComputedAt time.Time `json:"computed_at"`
	Metrics    Metrics   `json:"metrics"`
}

// TotalHours returns the tracked duration in hours.
func (m Metrics) TotalHours() float64 {
	return float64(m.TotalDurationSeconds) / 3600
}

package mcp

import (
	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
	"github.com/rpggio/tally/internal/rows"
	"github.com/rpggio/tally/internal/timer"
)

type WeekIDParams struct {
	WeekID int64 `json:"week_id" jsonschema:"week identifier"`
}

type RecordIDParams struct {
	RecordID int64 `json:"record_id" jsonschema:"record identifier"`
}

type CreateWeekParams struct {
	Label     string           `json:"label" jsonschema:"unique week label, e.g. 2026-W42"`
	StartDate string           `json:"start_date" jsonschema:"first day, YYYY-MM-DD"`
	EndDate   string           `json:"end_date" jsonschema:"last day, YYYY-MM-DD"`
	IsBonus   bool             `json:"is_bonus,omitempty" jsonschema:"whether bonus pay applies"`
	Bonus     *week.BonusRules `json:"bonus,omitempty" jsonschema:"bonus configuration"`
}

type UpdateWeekParams struct {
	WeekID    int64            `json:"week_id" jsonschema:"week identifier"`
	Label     *string          `json:"label,omitempty" jsonschema:"new label"`
	StartDate *string          `json:"start_date,omitempty" jsonschema:"new first day, YYYY-MM-DD"`
	EndDate   *string          `json:"end_date,omitempty" jsonschema:"new last day, YYYY-MM-DD"`
	IsBonus   *bool            `json:"is_bonus,omitempty" jsonschema:"whether bonus pay applies"`
	Bonus     *week.BonusRules `json:"bonus,omitempty" jsonschema:"bonus configuration"`
}

type ListRecordsParams struct {
	WeekID int64 `json:"week_id" jsonschema:"week identifier"`
	Offset int   `json:"offset,omitempty" jsonschema:"first row, 0-based"`
	Limit  int   `json:"limit,omitempty" jsonschema:"maximum rows, default 50"`
}

// RecordFieldsParams carries editable record fields. Nil fields are left
// unset on create and unchanged on update.
type RecordFieldsParams struct {
	AttemptID        *string `json:"attempt_id,omitempty"`
	DurationSeconds  *int64  `json:"duration_seconds,omitempty" jsonschema:"tracked seconds"`
	ProjectID        *string `json:"project_id,omitempty"`
	ProjectName      *string `json:"project_name,omitempty"`
	OperationID      *string `json:"operation_id,omitempty"`
	TimeLimitSeconds *int64  `json:"time_limit_seconds,omitempty"`
	DateAudited      *string `json:"date_audited,omitempty" jsonschema:"YYYY-MM-DD"`
	Score            *int    `json:"score,omitempty" jsonschema:"0 for unscored or 1 to 5"`
	Feedback         *string `json:"feedback,omitempty"`
	Locale           *string `json:"locale,omitempty"`
	BonusPaid        *bool   `json:"bonus_paid,omitempty"`
	TimeBegin        *string `json:"time_begin,omitempty" jsonschema:"RFC 3339 timestamp"`
	TimeEnd          *string `json:"time_end,omitempty" jsonschema:"RFC 3339 timestamp"`
}

type CreateRecordParams struct {
	WeekID int64              `json:"week_id" jsonschema:"week identifier"`
	Fields RecordFieldsParams `json:"fields,omitempty" jsonschema:"initial field values"`
}

type UpdateRecordParams struct {
	RecordID int64              `json:"record_id" jsonschema:"record identifier"`
	Fields   RecordFieldsParams `json:"fields" jsonschema:"fields to change"`
}

type RecentChangesParams struct {
	WeekID     *int64 `json:"week_id,omitempty" jsonschema:"only changes in this week"`
	RecordID   *int64 `json:"record_id,omitempty" jsonschema:"only changes to this record"`
	ChangeType string `json:"change_type,omitempty" jsonschema:"record_created, record_updated, record_deleted or week_reset"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type EmptyParams struct{}

type WeekResponse struct {
	Week week.Week `json:"week"`
}

type WeekListResponse struct {
	Weeks []week.Week `json:"weeks"`
}

type RecordResponse struct {
	Record record.Record `json:"record"`
}

type RecordPageResponse struct {
	WeekID  int64            `json:"week_id"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Records []record.Record  `json:"records"`
	Window  []rows.ChunkInfo `json:"window"`
}

type CreateRecordResponse struct {
	ID int64 `json:"id"`
}

type MutationResponse struct {
	OK bool `json:"ok"`
}

type AggregateResponse struct {
	Aggregate  record.Aggregate `json:"aggregate"`
	TotalHours float64          `json:"total_hours"`
}

type CacheStatsResponse struct {
	Pools []PoolStats `json:"pools"`
}

type PoolStats struct {
	cache.Stats
	HitRate float64 `json:"hit_rate"`
}

type RecentChangesResponse struct {
	Changes []activity.Entry `json:"changes"`
}

type TimerResponse struct {
	Timer timer.Status `json:"timer"`
}

type StopTimerResponse struct {
	RecordID        int64 `json:"record_id"`
	DurationSeconds int64 `json:"duration_seconds"`
}

type TimerListResponse struct {
	Timers []timer.Status `json:"timers"`
}

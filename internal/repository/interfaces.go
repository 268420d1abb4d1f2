package repository

import (
	"context"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
)

// RecordStore is the durable record store. Records within a week are
// ordered by id.
type RecordStore interface {
	CountRecords(ctx context.Context, weekID int64) (int, error)
	QueryRecords(ctx context.Context, weekID int64, offset, limit int) ([]record.Record, error)
	GetRecord(ctx context.Context, id int64) (*record.Record, error)
	InsertRecord(ctx context.Context, weekID int64, fields record.Fields) (int64, error)
	UpdateRecord(ctx context.Context, id int64, changes record.Changes) (bool, error)
	DeleteRecord(ctx context.Context, id int64) (bool, error)
	ComputeAggregate(ctx context.Context, weekID int64) (record.Metrics, error)
}

// WeekStore manages week persistence
type WeekStore interface {
	CreateWeek(ctx context.Context, w *week.Week) error
	GetWeek(ctx context.Context, id int64) (*week.Week, error)
	ListWeeks(ctx context.Context) ([]week.Week, error)
	UpdateWeek(ctx context.Context, w *week.Week) error
	DeleteWeek(ctx context.Context, id int64) error
}

// ChangeLogStore manages change journal persistence
type ChangeLogStore interface {
	Append(ctx context.Context, entry *activity.Entry) error
	List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

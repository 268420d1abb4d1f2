package mocks

import (
	"context"

	"github.com/rpggio/tally/internal/domain/activity"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
	"github.com/stretchr/testify/mock"
)

// RecordStore is a mock for repository.RecordStore.
type RecordStore struct {
	mock.Mock
}

func (m *RecordStore) CountRecords(ctx context.Context, weekID int64) (int, error) {
	args := m.Called(ctx, weekID)
	return args.Int(0), args.Error(1)
}

func (m *RecordStore) QueryRecords(ctx context.Context, weekID int64, offset, limit int) ([]record.Record, error) {
	args := m.Called(ctx, weekID, offset, limit)
	if list, ok := args.Get(0).([]record.Record); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordStore) GetRecord(ctx context.Context, id int64) (*record.Record, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*record.Record); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordStore) InsertRecord(ctx context.Context, weekID int64, fields record.Fields) (int64, error) {
	args := m.Called(ctx, weekID, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RecordStore) UpdateRecord(ctx context.Context, id int64, changes record.Changes) (bool, error) {
	args := m.Called(ctx, id, changes)
	return args.Bool(0), args.Error(1)
}

func (m *RecordStore) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *RecordStore) ComputeAggregate(ctx context.Context, weekID int64) (record.Metrics, error) {
	args := m.Called(ctx, weekID)
	return args.Get(0).(record.Metrics), args.Error(1)
}

// WeekStore is a mock for repository.WeekStore.
type WeekStore struct {
	mock.Mock
}

func (m *WeekStore) CreateWeek(ctx context.Context, w *week.Week) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *WeekStore) GetWeek(ctx context.Context, id int64) (*week.Week, error) {
	args := m.Called(ctx, id)
	if w, ok := args.Get(0).(*week.Week); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WeekStore) ListWeeks(ctx context.Context) ([]week.Week, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]week.Week); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WeekStore) UpdateWeek(ctx context.Context, w *week.Week) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *WeekStore) DeleteWeek(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ChangeLogStore is a mock for repository.ChangeLogStore.
type ChangeLogStore struct {
	mock.Mock
}

func (m *ChangeLogStore) Append(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ChangeLogStore) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

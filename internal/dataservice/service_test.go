package dataservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
	"github.com/rpggio/tally/internal/events"
	"github.com/rpggio/tally/internal/repository"
	"github.com/rpggio/tally/internal/repository/mocks"
	"github.com/rpggio/tally/internal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockedService struct {
	svc      *Service
	records  *mocks.RecordStore
	weeks    *mocks.WeekStore
	cache    *cache.Registry
	notifier *events.Notifier
}

func newMockedService(t *testing.T) mockedService {
	t.Helper()
	records := &mocks.RecordStore{}
	weeks := &mocks.WeekStore{}
	reg := cache.NewRegistry(DefaultPools(), nil)
	notifier := events.NewNotifier(nil)
	t.Cleanup(func() {
		records.AssertExpectations(t)
		weeks.AssertExpectations(t)
	})
	return mockedService{
		svc:      NewService(records, weeks, reg, notifier, nil),
		records:  records,
		weeks:    weeks,
		cache:    reg,
		notifier: notifier,
	}
}

func newSQLiteService(t *testing.T) (*Service, int64) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	svc := NewService(
		sqlite.NewRecordRepository(db),
		sqlite.NewWeekRepository(db),
		cache.NewRegistry(DefaultPools(), nil),
		events.NewNotifier(nil),
		nil,
	)
	start := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	w, err := svc.CreateWeek(context.Background(), week.CreateRequest{
		Label:     "W42",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
	})
	require.NoError(t, err)
	return svc, w.ID
}

func intPtr(v int) *int { return &v }

func TestService_PanicsOnMissingPool(t *testing.T) {
	pools := DefaultPools()
	delete(pools, PoolAggregates)
	reg := cache.NewRegistry(pools, nil)

	assert.Panics(t, func() {
		NewService(&mocks.RecordStore{}, &mocks.WeekStore{}, reg, nil, nil)
	})
}

func TestService_ListRecordsCachesUntilWrite(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()
	rows := []record.Record{{ID: 1, WeekID: 7}, {ID: 2, WeekID: 7}}

	m.records.On("QueryRecords", ctx, int64(7), 0, 100).Return(rows, nil).Twice()
	m.records.On("InsertRecord", ctx, int64(7), mock.Anything).Return(int64(3), nil).Once()

	opts := record.ListOptions{Limit: 100}
	first, err := m.svc.ListRecords(ctx, 7, opts)
	require.NoError(t, err)
	second, err := m.svc.ListRecords(ctx, 7, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	m.records.AssertNumberOfCalls(t, "QueryRecords", 1)

	_, err = m.svc.CreateRecord(ctx, 7, record.Fields{Score: 3})
	require.NoError(t, err)

	_, err = m.svc.ListRecords(ctx, 7, opts)
	require.NoError(t, err)
	m.records.AssertNumberOfCalls(t, "QueryRecords", 2)
}

func TestService_ListRecordsReturnsCopy(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()
	m.records.On("QueryRecords", ctx, int64(1), 0, 0).Return([]record.Record{{ID: 1, Score: 2}}, nil).Once()

	list, err := m.svc.ListRecords(ctx, 1, record.ListOptions{})
	require.NoError(t, err)
	list[0].Score = 5

	again, err := m.svc.ListRecords(ctx, 1, record.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, again[0].Score)
}

func TestService_ListRecordsRejectsNegativeWindow(t *testing.T) {
	m := newMockedService(t)
	_, err := m.svc.ListRecords(context.Background(), 1, record.ListOptions{Offset: -1})
	assert.ErrorIs(t, err, record.ErrInvalidInput)
}

func TestService_WriteLeavesOtherWeeksCached(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()

	m.records.On("CountRecords", ctx, int64(1)).Return(4, nil).Once()
	m.records.On("CountRecords", ctx, int64(12)).Return(9, nil).Once()
	m.records.On("InsertRecord", ctx, int64(1), mock.Anything).Return(int64(5), nil).Once()

	_, err := m.svc.CountRecords(ctx, 1)
	require.NoError(t, err)
	_, err = m.svc.CountRecords(ctx, 12)
	require.NoError(t, err)

	_, err = m.svc.CreateRecord(ctx, 1, record.Fields{})
	require.NoError(t, err)

	n, err := m.svc.CountRecords(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	m.records.AssertNumberOfCalls(t, "CountRecords", 2)
}

func TestService_CreateRecordInvalidatesBeforePublish(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()

	m.records.On("CountRecords", ctx, int64(3)).Return(1, nil).Once()
	m.records.On("InsertRecord", ctx, int64(3), mock.Anything).Return(int64(10), nil).Once()

	_, err := m.svc.CountRecords(ctx, 3)
	require.NoError(t, err)

	var seen []events.Event
	var cachedAtDelivery bool
	m.svc.OnChange(func(ev events.Event) {
		seen = append(seen, ev)
		_, cachedAtDelivery = m.cache.Pool(PoolCounts).Get(countKey(3))
	})

	id, err := m.svc.CreateRecord(ctx, 3, record.Fields{Score: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	require.Len(t, seen, 1)
	assert.Equal(t, events.KindCreated, seen[0].Kind)
	assert.Equal(t, int64(3), seen[0].WeekID)
	assert.Equal(t, int64(10), seen[0].RecordID)
	assert.False(t, cachedAtDelivery, "count must be invalidated before subscribers run")
}

func TestService_CreateRecordFailureInvalidatesWithoutPublishing(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()
	busy := errors.New("database is locked")

	m.records.On("CountRecords", ctx, int64(2)).Return(1, nil).Once()
	m.records.On("InsertRecord", ctx, int64(2), mock.Anything).Return(int64(0), busy).Once()

	_, err := m.svc.CountRecords(ctx, 2)
	require.NoError(t, err)

	published := 0
	m.svc.OnChange(func(events.Event) { published++ })

	_, err = m.svc.CreateRecord(ctx, 2, record.Fields{})
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, busy)
	assert.Zero(t, published)

	_, cached := m.cache.Pool(PoolCounts).Get(countKey(2))
	assert.False(t, cached)
}

func TestService_CreateRecordUnknownWeek(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()
	m.records.On("InsertRecord", ctx, int64(99), mock.Anything).
		Return(int64(0), repository.ErrForeignKeyViolation).Once()

	_, err := m.svc.CreateRecord(ctx, 99, record.Fields{})
	assert.ErrorIs(t, err, week.ErrWeekNotFound)
}

func TestService_CreateRecordValidatesBeforeStore(t *testing.T) {
	m := newMockedService(t)
	_, err := m.svc.CreateRecord(context.Background(), 1, record.Fields{Score: 9})
	assert.ErrorIs(t, err, record.ErrInvalidInput)
}

func TestService_UpdateRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		m := newMockedService(t)
		m.records.On("GetRecord", ctx, int64(5)).Return(nil, repository.ErrNotFound).Once()

		ok, err := m.svc.UpdateRecord(ctx, 5, record.Changes{Score: intPtr(2)})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty changes", func(t *testing.T) {
		m := newMockedService(t)
		m.records.On("GetRecord", ctx, int64(5)).Return(&record.Record{ID: 5, WeekID: 1}, nil).Once()

		ok, err := m.svc.UpdateRecord(ctx, 5, record.Changes{})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("store failure invalidates", func(t *testing.T) {
		m := newMockedService(t)
		busy := errors.New("disk I/O error")
		changes := record.Changes{Score: intPtr(4)}
		m.records.On("GetRecord", ctx, int64(5)).Return(&record.Record{ID: 5, WeekID: 1}, nil).Once()
		m.records.On("UpdateRecord", ctx, int64(5), changes).Return(false, busy).Once()

		published := 0
		m.svc.OnChange(func(events.Event) { published++ })

		ok, err := m.svc.UpdateRecord(ctx, 5, changes)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Zero(t, published)

		_, cached := m.cache.Pool(PoolRecords).Get(recordKey(5))
		assert.False(t, cached)
	})

	t.Run("publishes updated", func(t *testing.T) {
		m := newMockedService(t)
		changes := record.Changes{Score: intPtr(4)}
		m.records.On("GetRecord", ctx, int64(5)).Return(&record.Record{ID: 5, WeekID: 8}, nil).Once()
		m.records.On("UpdateRecord", ctx, int64(5), changes).Return(true, nil).Once()

		var got []events.Event
		m.svc.OnChange(func(ev events.Event) { got = append(got, ev) })

		ok, err := m.svc.UpdateRecord(ctx, 5, changes)
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, events.KindUpdated, got[0].Kind)
		assert.Equal(t, int64(8), got[0].WeekID)
	})
}

func TestService_DeleteRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		m := newMockedService(t)
		m.records.On("GetRecord", ctx, int64(4)).Return(nil, repository.ErrNotFound).Once()

		ok, err := m.svc.DeleteRecord(ctx, 4)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("store failure invalidates", func(t *testing.T) {
		m := newMockedService(t)
		busy := errors.New("database is locked")
		m.records.On("CountRecords", ctx, int64(1)).Return(3, nil).Once()
		m.records.On("GetRecord", ctx, int64(5)).Return(&record.Record{ID: 5, WeekID: 1}, nil).Once()
		m.records.On("DeleteRecord", ctx, int64(5)).Return(false, busy).Once()

		_, err := m.svc.CountRecords(ctx, 1)
		require.NoError(t, err)

		published := 0
		m.svc.OnChange(func(events.Event) { published++ })

		ok, err := m.svc.DeleteRecord(ctx, 5)
		assert.False(t, ok)
		require.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorIs(t, err, busy)
		assert.Zero(t, published)

		_, cached := m.cache.Pool(PoolRecords).Get(recordKey(5))
		assert.False(t, cached, "record entry dropped")
		_, cached = m.cache.Pool(PoolCounts).Get(countKey(1))
		assert.False(t, cached, "week count dropped")
	})

	t.Run("publishes deleted", func(t *testing.T) {
		m := newMockedService(t)
		m.records.On("GetRecord", ctx, int64(5)).Return(&record.Record{ID: 5, WeekID: 3}, nil).Once()
		m.records.On("DeleteRecord", ctx, int64(5)).Return(true, nil).Once()

		var got []events.Event
		m.svc.OnChange(func(ev events.Event) { got = append(got, ev) })

		ok, err := m.svc.DeleteRecord(ctx, 5)
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, got, 1)
		assert.Equal(t, events.KindDeleted, got[0].Kind)
		assert.Equal(t, int64(3), got[0].WeekID)
		assert.Equal(t, int64(5), got[0].RecordID)
	})
}

func TestService_GetRecordNotFound(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()
	m.records.On("GetRecord", ctx, int64(1)).Return(nil, repository.ErrNotFound).Twice()

	_, err := m.svc.GetRecord(ctx, 1)
	assert.ErrorIs(t, err, record.ErrRecordNotFound)

	// Misses are not cached.
	_, err = m.svc.GetRecord(ctx, 1)
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
}

func TestService_CreateWeekDuplicateLabel(t *testing.T) {
	m := newMockedService(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	m.weeks.On("CreateWeek", ctx, mock.Anything).Return(repository.ErrConflict).Once()

	_, err := m.svc.CreateWeek(ctx, week.CreateRequest{Label: "W42", StartDate: start, EndDate: start.AddDate(0, 0, 6)})
	assert.ErrorIs(t, err, week.ErrDuplicateLabel)
}

func TestService_ReadAfterWrite(t *testing.T) {
	svc, weekID := newSQLiteService(t)
	ctx := context.Background()

	list, err := svc.ListRecords(ctx, weekID, record.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)

	id, err := svc.CreateRecord(ctx, weekID, record.Fields{ProjectName: "alpha", Score: 3, DurationSeconds: 600})
	require.NoError(t, err)

	list, err = svc.ListRecords(ctx, weekID, record.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	n, err := svc.CountRecords(ctx, weekID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := svc.UpdateRecord(ctx, id, record.Changes{Score: intPtr(5)})
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := svc.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Score)

	ok, err = svc.DeleteRecord(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.GetRecord(ctx, id)
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
	n, err = svc.CountRecords(ctx, weekID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_AggregateReflectsWrites(t *testing.T) {
	svc, weekID := newSQLiteService(t)
	ctx := context.Background()

	agg, err := svc.GetAggregate(ctx, weekID)
	require.NoError(t, err)
	assert.Zero(t, agg.Metrics.TotalRecords)

	for _, score := range []int{2, 4, 5} {
		_, err := svc.CreateRecord(ctx, weekID, record.Fields{Score: score, DurationSeconds: 1800})
		require.NoError(t, err)
	}

	agg, err = svc.GetAggregate(ctx, weekID)
	require.NoError(t, err)
	assert.Equal(t, weekID, agg.WeekID)
	assert.Equal(t, 3, agg.Metrics.TotalRecords)
	assert.Equal(t, 2, agg.Metrics.HighScoreCount)
	assert.Equal(t, int64(5400), agg.Metrics.TotalDurationSeconds)
}

func TestService_DeleteWeekPublishesReset(t *testing.T) {
	svc, weekID := newSQLiteService(t)
	ctx := context.Background()

	id, err := svc.CreateRecord(ctx, weekID, record.Fields{})
	require.NoError(t, err)
	_, err = svc.GetRecord(ctx, id)
	require.NoError(t, err)

	var got []events.Event
	svc.OnChange(func(ev events.Event) { got = append(got, ev) })

	require.NoError(t, svc.DeleteWeek(ctx, weekID))
	require.Len(t, got, 1)
	assert.Equal(t, events.KindReset, got[0].Kind)

	_, err = svc.GetRecord(ctx, id)
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
	_, err = svc.GetWeek(ctx, weekID)
	assert.ErrorIs(t, err, week.ErrWeekNotFound)

	assert.ErrorIs(t, svc.DeleteWeek(ctx, weekID), week.ErrWeekNotFound)
}

func TestService_UpdateWeekRefreshesList(t *testing.T) {
	svc, weekID := newSQLiteService(t)
	ctx := context.Background()

	weeks, err := svc.ListWeeks(ctx)
	require.NoError(t, err)
	require.Len(t, weeks, 1)

	label := "W42b"
	updated, err := svc.UpdateWeek(ctx, weekID, week.UpdateRequest{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, label, updated.Label)

	weeks, err = svc.ListWeeks(ctx)
	require.NoError(t, err)
	assert.Equal(t, label, weeks[0].Label)
}

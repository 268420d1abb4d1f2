package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestRecordRepository_InsertGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	weekID := insertWeek(t, db, "W42")

	begin := time.Date(2026, 10, 13, 9, 30, 0, 0, time.UTC)
	id, err := repo.InsertRecord(ctx, weekID, record.Fields{
		AttemptID:       "att-1",
		DurationSeconds: 540,
		ProjectName:     "Search Eval",
		Score:           4,
		Feedback:        "clean",
		BonusPaid:       true,
		TimeBegin:       &begin,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	rec, err := repo.GetRecord(ctx, id)
	require.NoError(t, err)
	require.Equal(t, weekID, rec.WeekID)
	require.Equal(t, "att-1", rec.AttemptID)
	require.Equal(t, int64(540), rec.DurationSeconds)
	require.Equal(t, 4, rec.Score)
	require.True(t, rec.BonusPaid)
	require.NotNil(t, rec.TimeBegin)
	require.True(t, begin.Equal(*rec.TimeBegin))
	require.Nil(t, rec.TimeEnd)
	require.False(t, rec.CreatedAt.IsZero())

	_, err = repo.GetRecord(ctx, id+1000)
	require.Equal(t, repository.ErrNotFound, err)
}

func TestRecordRepository_InsertUnknownWeek(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRecordRepository(db)

	_, err := repo.InsertRecord(context.Background(), 999, record.Fields{})
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}

func TestRecordRepository_QueryOrderedWindow(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	weekID := insertWeek(t, db, "W42")
	otherWeek := insertWeek(t, db, "W43")

	var ids []int64
	for i := range 25 {
		id, err := repo.InsertRecord(ctx, weekID, record.Fields{AttemptID: fmt.Sprintf("a%d", i)})
		require.NoError(t, err)
		ids = append(ids, id)
		_, err = repo.InsertRecord(ctx, otherWeek, record.Fields{})
		require.NoError(t, err)
	}

	count, err := repo.CountRecords(ctx, weekID)
	require.NoError(t, err)
	require.Equal(t, 25, count)

	window, err := repo.QueryRecords(ctx, weekID, 10, 10)
	require.NoError(t, err)
	require.Len(t, window, 10)
	for i, rec := range window {
		require.Equal(t, ids[10+i], rec.ID)
	}

	tail, err := repo.QueryRecords(ctx, weekID, 20, 10)
	require.NoError(t, err)
	require.Len(t, tail, 5)

	all, err := repo.QueryRecords(ctx, weekID, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 25)

	empty, err := repo.QueryRecords(ctx, weekID, 100, 10)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestRecordRepository_UpdatePartial(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	weekID := insertWeek(t, db, "W42")

	id, err := repo.InsertRecord(ctx, weekID, record.Fields{ProjectName: "A", Score: 2})
	require.NoError(t, err)

	score := 5
	duration := int64(1200)
	ok, err := repo.UpdateRecord(ctx, id, record.Changes{Score: &score, DurationSeconds: &duration})
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := repo.GetRecord(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 5, rec.Score)
	require.Equal(t, int64(1200), rec.DurationSeconds)
	require.Equal(t, "A", rec.ProjectName, "untouched fields keep their value")

	ok, err = repo.UpdateRecord(ctx, id, record.Changes{})
	require.NoError(t, err)
	require.True(t, ok, "empty change set on existing record")

	ok, err = repo.UpdateRecord(ctx, id+99, record.Changes{Score: &score})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.UpdateRecord(ctx, id+99, record.Changes{})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordRepository_Delete(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	weekID := insertWeek(t, db, "W42")

	id, err := repo.InsertRecord(ctx, weekID, record.Fields{})
	require.NoError(t, err)

	ok, err := repo.DeleteRecord(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.DeleteRecord(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordRepository_ComputeAggregate(t *testing.T) {
	db := NewTestDB(t)
	repo := NewRecordRepository(db)
	ctx := context.Background()
	weekID := insertWeek(t, db, "W42")

	empty, err := repo.ComputeAggregate(ctx, weekID)
	require.NoError(t, err)
	require.Equal(t, record.Metrics{}, empty)

	for _, f := range []record.Fields{
		{DurationSeconds: 600, Score: 2},
		{DurationSeconds: 1200, Score: 5, BonusPaid: true},
		{DurationSeconds: 300, Score: 3},
		{DurationSeconds: 100},
	} {
		_, err := repo.InsertRecord(ctx, weekID, f)
		require.NoError(t, err)
	}

	m, err := repo.ComputeAggregate(ctx, weekID)
	require.NoError(t, err)
	require.Equal(t, 4, m.TotalRecords)
	require.Equal(t, 3, m.ScoredRecords)
	require.Equal(t, int64(2200), m.TotalDurationSeconds)
	require.InDelta(t, 10.0/3.0, m.AverageScore, 1e-9)
	require.Equal(t, 2, m.MinScore)
	require.Equal(t, 5, m.MaxScore)
	require.Equal(t, 2, m.HighScoreCount)
	require.Equal(t, 1, m.BonusPaidCount)
}

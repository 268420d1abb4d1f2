package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/tally/internal/domain/week"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func insertWeek(t *testing.T, db *DB, label string) int64 {
	t.Helper()
	start := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	w := &week.Week{Label: label, StartDate: start, EndDate: start.AddDate(0, 0, 6)}
	require.NoError(t, NewWeekRepository(db).CreateWeek(context.Background(), w))
	return w.ID
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"weeks", "records", "change_log"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	require.NoError(t, db.RunMigrations(), "migrations must be idempotent")
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

func TestRecordsTableConstraints(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	weekID := insertWeek(t, db, "W42")
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO records (week_id, score, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		weekID, 6, now, now)
	require.Error(t, err, "score above 5 must be rejected")

	_, err = db.ExecContext(ctx,
		`INSERT INTO records (week_id, duration_seconds, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		weekID, -1, now, now)
	require.Error(t, err, "negative duration must be rejected")

	_, err = db.ExecContext(ctx,
		`INSERT INTO records (week_id, created_at, updated_at) VALUES (?, ?, ?)`,
		weekID+100, now, now)
	require.Error(t, err, "unknown week must be rejected")
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	path := t.TempDir() + "/tally.db"
	db, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestWithPragmas(t *testing.T) {
	require.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)",
		withPragmas("a.db", "foreign_keys(1)", "journal_mode(wal)"))
	require.Equal(t, "a.db?cache=shared&_pragma=foreign_keys(1)",
		withPragmas("a.db?cache=shared", "foreign_keys(1)"))
	require.True(t, isMemoryDSN(":memory:"))
	require.True(t, isMemoryDSN("file:x?mode=memory&cache=shared"))
	require.False(t, isMemoryDSN("/var/lib/tally.db"))
}

package cli

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tally/internal/domain/record"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestWeekBounds(t *testing.T) {
	// Thursday.
	now := time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC)

	start, end, err := weekBounds("", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), end)

	start, end, err = weekBounds("2026-10-01", "2026-10-03", now)
	require.NoError(t, err)
	assert.Equal(t, 1, start.Day())
	assert.Equal(t, 3, end.Day())

	_, _, err = weekBounds("10/01/2026", "", now)
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := parseID("week id", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, s := range []string{"", "0", "-3", "abc"} {
		_, err := parseID("week id", s)
		assert.Error(t, err, s)
	}
}

func TestRecordFlags_Changes(t *testing.T) {
	var f recordFlags
	fs := newFlagSet(&f)
	require.NoError(t, fs.Parse([]string{"--score", "4", "--feedback", "ok"}))

	c := f.changes(fs)
	require.NotNil(t, c.Score)
	assert.Equal(t, 4, *c.Score)
	require.NotNil(t, c.Feedback)
	assert.Equal(t, "ok", *c.Feedback)
	assert.Nil(t, c.DurationSeconds)
	assert.Nil(t, c.ProjectName)

	var empty recordFlags
	fs = newFlagSet(&empty)
	require.NoError(t, fs.Parse(nil))
	assert.True(t, empty.changes(fs).IsEmpty())
}

func TestLogFileWriter_Truncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tally.log")
	w, err := openLogFile(path, 64, 32)
	require.NoError(t, err)
	defer w.Close()

	line := bytes.Repeat([]byte("x"), 20)
	for range 5 {
		_, err := w.Write(append(line, '\n'))
		require.NoError(t, err)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(data), 64)
	assert.Equal(t, byte('\n'), data[len(data)-1], "newest bytes are kept")
}

func TestCommands_AgainstDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "data", "tally.db")
	t.Setenv("TALLY_CONFIG_PATH", "")
	t.Setenv("TALLY_DB_PATH", db)

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		RootCmd.SetOut(&out)
		RootCmd.SetErr(&bytes.Buffer{})
		RootCmd.SetArgs(args)
		require.NoError(t, RootCmd.Execute(), "tally %v", args)
		return out.String()
	}

	var w struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(run("week", "add", "2026-W42", "--start", "2026-10-12")), &w))
	require.NotZero(t, w.ID)
	weekID := formatID(w.ID)

	var rec record.Record
	require.NoError(t, json.Unmarshal([]byte(run("record", "add", weekID, "--project", "alpha", "--duration", "900", "--score", "3")), &rec))
	assert.Equal(t, "alpha", rec.ProjectName)

	require.NoError(t, json.Unmarshal([]byte(run("record", "set", formatID(rec.ID), "--score", "5")), &rec))
	assert.Equal(t, 5, rec.Score)
	assert.Equal(t, int64(900), rec.DurationSeconds)

	var page []record.Record
	require.NoError(t, json.Unmarshal([]byte(run("record", "ls", weekID)), &page))
	require.Len(t, page, 1)
	assert.Equal(t, 5, page[0].Score)

	var stats statsOutput
	require.NoError(t, json.Unmarshal([]byte(run("stats", weekID)), &stats))
	require.NotNil(t, stats.Aggregate)
	assert.Equal(t, 1, stats.Aggregate.Metrics.TotalRecords)
	assert.InDelta(t, 0.25, stats.TotalHours, 0.001)
	assert.Len(t, stats.Changes, 2)
	assert.NotEmpty(t, stats.Pools)

	assert.Contains(t, run("record", "rm", formatID(rec.ID)), "deleted record")
	assert.Contains(t, run("week", "rm", weekID), "deleted week")
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/repository"
)

const recordColumns = `
	id, week_id, attempt_id, duration_seconds, project_id, project_name,
	operation_id, time_limit_seconds, date_audited, score, feedback, locale,
	bonus_paid, time_begin, time_end, created_at, updated_at`

// RecordRepository implements repository.RecordStore for SQLite
type RecordRepository struct {
	db  *DB
	now func() time.Time
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db, now: time.Now}
}

// CountRecords returns the number of records in a week
func (r *RecordRepository) CountRecords(ctx context.Context, weekID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE week_id = ?`, weekID).Scan(&count)
	if err != nil {
		return 0, wrapError("count records", err)
	}
	return count, nil
}

// QueryRecords returns a window of a week's records ordered by id. A
// non-positive limit returns every record from offset on.
func (r *RecordRepository) QueryRecords(ctx context.Context, weekID int64, offset, limit int) ([]record.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + recordColumns + `
		FROM records
		WHERE week_id = ?
		ORDER BY id
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, weekID, limit, offset)
	if err != nil {
		return nil, wrapError("query records", err)
	}
	defer rows.Close()

	records := []record.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate record rows", err)
	}

	return records, nil
}

// GetRecord retrieves a record by ID
func (r *RecordRepository) GetRecord(ctx context.Context, id int64) (*record.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, wrapError("get record", err)
	}

	return &rec, nil
}

// InsertRecord creates a record in a week and returns its id
func (r *RecordRepository) InsertRecord(ctx context.Context, weekID int64, f record.Fields) (int64, error) {
	query := `
		INSERT INTO records (
			week_id, attempt_id, duration_seconds, project_id, project_name,
			operation_id, time_limit_seconds, date_audited, score, feedback, locale,
			bonus_paid, time_begin, time_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := r.now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		weekID,
		f.AttemptID,
		f.DurationSeconds,
		f.ProjectID,
		f.ProjectName,
		f.OperationID,
		f.TimeLimitSeconds,
		f.DateAudited,
		f.Score,
		f.Feedback,
		f.Locale,
		f.BonusPaid,
		nullTime(f.TimeBegin),
		nullTime(f.TimeEnd),
		now,
		now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, repository.ErrForeignKeyViolation
		}
		return 0, wrapError("insert record", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

// UpdateRecord applies the non-nil changes and reports whether the record
// exists
func (r *RecordRepository) UpdateRecord(ctx context.Context, id int64, c record.Changes) (bool, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if c.AttemptID != nil {
		add("attempt_id", *c.AttemptID)
	}
	if c.DurationSeconds != nil {
		add("duration_seconds", *c.DurationSeconds)
	}
	if c.ProjectID != nil {
		add("project_id", *c.ProjectID)
	}
	if c.ProjectName != nil {
		add("project_name", *c.ProjectName)
	}
	if c.OperationID != nil {
		add("operation_id", *c.OperationID)
	}
	if c.TimeLimitSeconds != nil {
		add("time_limit_seconds", *c.TimeLimitSeconds)
	}
	if c.DateAudited != nil {
		add("date_audited", *c.DateAudited)
	}
	if c.Score != nil {
		add("score", *c.Score)
	}
	if c.Feedback != nil {
		add("feedback", *c.Feedback)
	}
	if c.Locale != nil {
		add("locale", *c.Locale)
	}
	if c.BonusPaid != nil {
		add("bonus_paid", *c.BonusPaid)
	}
	if c.TimeBegin != nil {
		add("time_begin", c.TimeBegin.UTC())
	}
	if c.TimeEnd != nil {
		add("time_end", c.TimeEnd.UTC())
	}

	if len(sets) == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM records WHERE id = ?)`, id).Scan(&exists)
		if err != nil {
			return false, wrapError("check record existence", err)
		}
		return exists, nil
	}

	add("updated_at", r.now().UTC())
	args = append(args, id)
	query := `UPDATE records SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrapError("update record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteRecord deletes a record and reports whether it existed
func (r *RecordRepository) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, wrapError("delete record", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ComputeAggregate derives week metrics. Unscored records (score 0) count
// toward totals but not toward score statistics.
func (r *RecordRepository) ComputeAggregate(ctx context.Context, weekID int64) (record.Metrics, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN score > 0 THEN 1 END),
			COALESCE(SUM(duration_seconds), 0),
			COALESCE(AVG(CASE WHEN score > 0 THEN score END), 0.0),
			COALESCE(MIN(CASE WHEN score > 0 THEN score END), 0),
			COALESCE(MAX(CASE WHEN score > 0 THEN score END), 0),
			COUNT(CASE WHEN score >= ? THEN 1 END),
			COUNT(CASE WHEN bonus_paid = 1 THEN 1 END)
		FROM records
		WHERE week_id = ?
	`

	var m record.Metrics
	err := r.db.QueryRowContext(ctx, query, record.HighScoreThreshold, weekID).Scan(
		&m.TotalRecords,
		&m.ScoredRecords,
		&m.TotalDurationSeconds,
		&m.AverageScore,
		&m.MinScore,
		&m.MaxScore,
		&m.HighScoreCount,
		&m.BonusPaidCount,
	)
	if err != nil {
		return record.Metrics{}, wrapError("compute aggregate", err)
	}

	return m, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s rowScanner) (record.Record, error) {
	var rec record.Record
	var begin, end sql.NullTime
	err := s.Scan(
		&rec.ID,
		&rec.WeekID,
		&rec.AttemptID,
		&rec.DurationSeconds,
		&rec.ProjectID,
		&rec.ProjectName,
		&rec.OperationID,
		&rec.TimeLimitSeconds,
		&rec.DateAudited,
		&rec.Score,
		&rec.Feedback,
		&rec.Locale,
		&rec.BonusPaid,
		&begin,
		&end,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return record.Record{}, err
	}
	if begin.Valid {
		t := begin.Time
		rec.TimeBegin = &t
	}
	if end.Valid {
		t := end.Time
		rec.TimeEnd = &t
	}
	return rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

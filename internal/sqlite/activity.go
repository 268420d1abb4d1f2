package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/tally/internal/domain/activity"
)

// ChangeLogRepository implements repository.ChangeLogStore for SQLite
type ChangeLogRepository struct {
	db *DB
}

// NewChangeLogRepository creates a new ChangeLogRepository
func NewChangeLogRepository(db *DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// Append inserts a new journal entry
func (r *ChangeLogRepository) Append(ctx context.Context, entry *activity.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO change_log (
			event_id, week_id, record_id, change_type, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.EventID,
		entry.WeekID,
		entry.RecordID,
		entry.ChangeType,
		entry.Summary,
		createdAt.UTC(),
	)
	if err != nil {
		return wrapError("append change", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	entry.CreatedAt = createdAt

	return nil
}

// List returns journal entries matching the given filters, newest first
func (r *ChangeLogRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	query := `
		SELECT id, event_id, week_id, record_id, change_type, summary, created_at
		FROM change_log
	`

	args := []interface{}{}
	conditions := []string{}

	if opts.WeekID != nil {
		conditions = append(conditions, "week_id = ?")
		args = append(args, *opts.WeekID)
	}
	if opts.RecordID != nil {
		conditions = append(conditions, "record_id = ?")
		args = append(args, *opts.RecordID)
	}
	if opts.ChangeType != nil {
		conditions = append(conditions, "change_type = ?")
		args = append(args, *opts.ChangeType)
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			query += " LIMIT -1"
		}
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list changes", err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var entry activity.Entry
		var recordID sql.NullInt64
		if err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.WeekID,
			&recordID,
			&entry.ChangeType,
			&entry.Summary,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change entry: %w", err)
		}
		if recordID.Valid {
			entry.RecordID = &recordID.Int64
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate change rows", err)
	}

	return entries, nil
}

func joinConditions(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	joined := conditions[0]
	for i := 1; i < len(conditions); i++ {
		joined += " AND " + conditions[i]
	}
	return joined
}

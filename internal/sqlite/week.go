package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpggio/tally/internal/domain/week"
	"github.com/rpggio/tally/internal/repository"
)

const weekColumns = `
	id, label, start_date, end_date, is_bonus, bonus_use_global,
	bonus_pay_rate, bonus_task_threshold, bonus_additional_amount, created_at`

// WeekRepository implements repository.WeekStore for SQLite
type WeekRepository struct {
	db *DB
}

// NewWeekRepository creates a new WeekRepository
func NewWeekRepository(db *DB) *WeekRepository {
	return &WeekRepository{db: db}
}

// CreateWeek inserts a week and sets its ID
func (r *WeekRepository) CreateWeek(ctx context.Context, w *week.Week) error {
	query := `
		INSERT INTO weeks (
			label, start_date, end_date, is_bonus, bonus_use_global,
			bonus_pay_rate, bonus_task_threshold, bonus_additional_amount, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, query,
		w.Label,
		w.StartDate.UTC(),
		w.EndDate.UTC(),
		w.IsBonus,
		w.Bonus.UseGlobal,
		w.Bonus.PayRate,
		w.Bonus.TaskThreshold,
		w.Bonus.AdditionalAmount,
		w.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return wrapError("create week", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted id: %w", err)
	}
	w.ID = id
	return nil
}

// GetWeek retrieves a week by ID
func (r *WeekRepository) GetWeek(ctx context.Context, id int64) (*week.Week, error) {
	query := `SELECT ` + weekColumns + ` FROM weeks WHERE id = ?`

	w, err := scanWeek(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, wrapError("get week", err)
	}
	return &w, nil
}

// ListWeeks returns all weeks, most recent first
func (r *WeekRepository) ListWeeks(ctx context.Context) ([]week.Week, error) {
	query := `SELECT ` + weekColumns + ` FROM weeks ORDER BY start_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapError("list weeks", err)
	}
	defer rows.Close()

	weeks := []week.Week{}
	for rows.Next() {
		w, err := scanWeek(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan week: %w", err)
		}
		weeks = append(weeks, w)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError("iterate week rows", err)
	}

	return weeks, nil
}

// UpdateWeek overwrites every mutable column of a week
func (r *WeekRepository) UpdateWeek(ctx context.Context, w *week.Week) error {
	query := `
		UPDATE weeks
		SET label = ?, start_date = ?, end_date = ?, is_bonus = ?, bonus_use_global = ?,
		    bonus_pay_rate = ?, bonus_task_threshold = ?, bonus_additional_amount = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		w.Label,
		w.StartDate.UTC(),
		w.EndDate.UTC(),
		w.IsBonus,
		w.Bonus.UseGlobal,
		w.Bonus.PayRate,
		w.Bonus.TaskThreshold,
		w.Bonus.AdditionalAmount,
		w.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return wrapError("update week", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteWeek deletes a week and, by cascade, its records
func (r *WeekRepository) DeleteWeek(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM weeks WHERE id = ?`, id)
	if err != nil {
		return wrapError("delete week", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanWeek(s rowScanner) (week.Week, error) {
	var w week.Week
	err := s.Scan(
		&w.ID,
		&w.Label,
		&w.StartDate,
		&w.EndDate,
		&w.IsBonus,
		&w.Bonus.UseGlobal,
		&w.Bonus.PayRate,
		&w.Bonus.TaskThreshold,
		&w.Bonus.AdditionalAmount,
		&w.CreatedAt,
	)
	return w, err
}

// Package dataservice reads records and weeks through named cache pools and
// is the only write path to the record store. Every write invalidates the
// affected cache entries before the matching change event is published.
package dataservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rpggio/tally/internal/cache"
	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/domain/week"
	"github.com/rpggio/tally/internal/events"
	"github.com/rpggio/tally/internal/repository"
)

// Service orchestrates cached reads, store writes and change events.
type Service struct {
	records  repository.RecordStore
	weeks    repository.WeekStore
	cache    *cache.Registry
	notifier *events.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a data service. It panics if reg lacks any of Pools.
func NewService(records repository.RecordStore, weeks repository.WeekStore, reg *cache.Registry, notifier *events.Notifier, logger *slog.Logger) *Service {
	for _, name := range Pools {
		reg.Pool(name)
	}
	if notifier == nil {
		notifier = events.NewNotifier(logger)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		records:  records,
		weeks:    weeks,
		cache:    reg,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// GetWeek returns a week by id.
func (s *Service) GetWeek(ctx context.Context, id int64) (week.Week, error) {
	return cache.CachedQuery(s.cache, PoolPartitions, weekKey(id), func() (week.Week, error) {
		w, err := s.weeks.GetWeek(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return week.Week{}, week.ErrWeekNotFound
			}
			return week.Week{}, storeError("getting week", err)
		}
		return *w, nil
	})
}

// ListWeeks returns every week, most recent first.
func (s *Service) ListWeeks(ctx context.Context) ([]week.Week, error) {
	weeks, err := cache.CachedQuery(s.cache, PoolPartitions, weekListKey, func() ([]week.Week, error) {
		weeks, err := s.weeks.ListWeeks(ctx)
		if err != nil {
			return nil, storeError("listing weeks", err)
		}
		return weeks, nil
	})
	return slices.Clone(weeks), err
}

// ListRecords returns a week's records ordered by id. Zero options return
// the whole week.
func (s *Service) ListRecords(ctx context.Context, weekID int64, opts record.ListOptions) ([]record.Record, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative offset or limit", record.ErrInvalidInput)
	}
	list, err := cache.CachedQuery(s.cache, PoolRecordLists, recordListKey(weekID, opts), func() ([]record.Record, error) {
		list, err := s.records.QueryRecords(ctx, weekID, opts.Offset, opts.Limit)
		if err != nil {
			return nil, storeError("listing records", err)
		}
		return list, nil
	})
	return slices.Clone(list), err
}

// CountRecords returns the number of records in a week.
func (s *Service) CountRecords(ctx context.Context, weekID int64) (int, error) {
	return cache.CachedQuery(s.cache, PoolCounts, countKey(weekID), func() (int, error) {
		n, err := s.records.CountRecords(ctx, weekID)
		if err != nil {
			return 0, storeError("counting records", err)
		}
		return n, nil
	})
}

// GetRecord returns a record by id.
func (s *Service) GetRecord(ctx context.Context, id int64) (record.Record, error) {
	return cache.CachedQuery(s.cache, PoolRecords, recordKey(id), func() (record.Record, error) {
		rec, err := s.records.GetRecord(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return record.Record{}, record.ErrRecordNotFound
			}
			return record.Record{}, storeError("getting record", err)
		}
		return *rec, nil
	})
}

// GetAggregate returns the metrics snapshot for a week.
func (s *Service) GetAggregate(ctx context.Context, weekID int64) (record.Aggregate, error) {
	return cache.CachedQuery(s.cache, PoolAggregates, aggregateKey(weekID), func() (record.Aggregate, error) {
		m, err := s.records.ComputeAggregate(ctx, weekID)
		if err != nil {
			return record.Aggregate{}, storeError("computing aggregate", err)
		}
		return record.Aggregate{WeekID: weekID, ComputedAt: s.now(), Metrics: m}, nil
	})
}

// CreateRecord inserts a record into a week and returns its id.
func (s *Service) CreateRecord(ctx context.Context, weekID int64, fields record.Fields) (int64, error) {
	if err := record.ValidateFields(fields); err != nil {
		return 0, err
	}

	id, err := s.records.InsertRecord(ctx, weekID, fields)
	s.invalidateWeekRecords(weekID)
	if err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return 0, fmt.Errorf("creating record: %w", week.ErrWeekNotFound)
		}
		s.logger.Warn("record insert failed", "week_id", weekID, "error", err)
		return 0, storeError("creating record", err)
	}

	s.logger.Debug("record created", "id", id, "week_id", weekID)
	s.publish(events.KindCreated, weekID, id)
	return id, nil
}

// UpdateRecord applies changes to a record. It reports false when the
// record does not exist.
func (s *Service) UpdateRecord(ctx context.Context, id int64, changes record.Changes) (bool, error) {
	if err := record.ValidateChanges(changes); err != nil {
		return false, err
	}

	current, err := s.GetRecord(ctx, id)
	if errors.Is(err, record.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if changes.IsEmpty() {
		return true, nil
	}

	ok, err := s.records.UpdateRecord(ctx, id, changes)
	s.invalidateRecord(id, current.WeekID)
	if err != nil {
		s.logger.Warn("record update failed", "id", id, "week_id", current.WeekID, "error", err)
		return false, storeError("updating record", err)
	}
	if !ok {
		return false, nil
	}

	s.logger.Debug("record updated", "id", id, "week_id", current.WeekID)
	s.publish(events.KindUpdated, current.WeekID, id)
	return true, nil
}

// DeleteRecord removes a record. It reports false when the record does not
// exist.
func (s *Service) DeleteRecord(ctx context.Context, id int64) (bool, error) {
	current, err := s.GetRecord(ctx, id)
	if errors.Is(err, record.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ok, err := s.records.DeleteRecord(ctx, id)
	s.invalidateRecord(id, current.WeekID)
	if err != nil {
		s.logger.Warn("record delete failed", "id", id, "week_id", current.WeekID, "error", err)
		return false, storeError("deleting record", err)
	}
	if !ok {
		return false, nil
	}

	s.logger.Debug("record deleted", "id", id, "week_id", current.WeekID)
	s.publish(events.KindDeleted, current.WeekID, id)
	return true, nil
}

// CreateWeek creates a week.
func (s *Service) CreateWeek(ctx context.Context, req week.CreateRequest) (week.Week, error) {
	if err := week.ValidateCreate(req); err != nil {
		return week.Week{}, err
	}

	w := &week.Week{
		Label:     req.Label,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsBonus:   req.IsBonus,
		Bonus:     req.Bonus,
		CreatedAt: s.now().UTC(),
	}
	err := s.weeks.CreateWeek(ctx, w)
	s.cache.Delete(PoolPartitions, weekListKey)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return week.Week{}, week.ErrDuplicateLabel
		}
		return week.Week{}, storeError("creating week", err)
	}

	s.logger.Debug("week created", "id", w.ID, "label", w.Label)
	return *w, nil
}

// UpdateWeek edits a week's label, boundary or bonus configuration.
func (s *Service) UpdateWeek(ctx context.Context, id int64, req week.UpdateRequest) (week.Week, error) {
	current, err := s.GetWeek(ctx, id)
	if err != nil {
		return week.Week{}, err
	}
	updated, err := week.ApplyUpdate(current, req)
	if err != nil {
		return week.Week{}, err
	}

	err = s.weeks.UpdateWeek(ctx, &updated)
	s.invalidateWeekData(id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return week.Week{}, week.ErrWeekNotFound
		case errors.Is(err, repository.ErrConflict):
			return week.Week{}, week.ErrDuplicateLabel
		}
		return week.Week{}, storeError("updating week", err)
	}

	s.logger.Debug("week updated", "id", id)
	return updated, nil
}

// DeleteWeek removes a week and all of its records.
func (s *Service) DeleteWeek(ctx context.Context, id int64) error {
	err := s.weeks.DeleteWeek(ctx, id)
	s.invalidateWeekData(id)
	s.invalidateWeekRecords(id)
	// Record entries are keyed by record id alone.
	s.cache.InvalidatePattern(PoolRecords, "")
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return week.ErrWeekNotFound
		}
		return storeError("deleting week", err)
	}

	s.logger.Debug("week deleted", "id", id)
	s.publish(events.KindReset, id, 0)
	return nil
}

// RefreshWeek drops every cached artifact of a week and tells subscribers
// to reload it.
func (s *Service) RefreshWeek(id int64) {
	s.invalidateWeekData(id)
	s.invalidateWeekRecords(id)
	s.cache.InvalidatePattern(PoolRecords, "")
	s.publish(events.KindReset, id, 0)
}

// OnChange subscribes h to change events.
func (s *Service) OnChange(h events.Handler) events.Subscription {
	return s.notifier.Subscribe(h)
}

// Unsubscribe removes a change handler.
func (s *Service) Unsubscribe(id events.Subscription) bool {
	return s.notifier.Unsubscribe(id)
}

// CacheStats returns the counters of every pool.
func (s *Service) CacheStats() []cache.Stats {
	return s.cache.Stats()
}

func (s *Service) invalidateRecord(id, weekID int64) {
	s.cache.Delete(PoolRecords, recordKey(id))
	s.invalidateWeekRecords(weekID)
}

func (s *Service) invalidateWeekRecords(weekID int64) {
	scope := weekScope(weekID)
	s.cache.InvalidatePattern(PoolRecordLists, scope)
	s.cache.InvalidatePattern(PoolAggregates, scope)
	s.cache.InvalidatePattern(PoolCounts, scope)
}

func (s *Service) invalidateWeekData(weekID int64) {
	s.cache.InvalidatePattern(PoolPartitions, weekScope(weekID))
	s.cache.Delete(PoolPartitions, weekListKey)
}

func (s *Service) publish(kind events.Kind, weekID, recordID int64) {
	s.notifier.Publish(events.NewEvent(kind, weekID, recordID))
}

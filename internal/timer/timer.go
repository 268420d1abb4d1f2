// Package timer tracks running work timers and writes the accumulated
// duration back to the record while the timer runs.
package timer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/rpggio/tally/internal/domain/record"
)

var (
	ErrTimerRunning = errors.New("timer already exists for record")
	ErrNoTimer      = errors.New("no timer for record")
	ErrPaused       = errors.New("timer is paused")
	ErrNotPaused    = errors.New("timer is not paused")
)

// DefaultInterval is how often a running timer persists its duration.
const DefaultInterval = 5 * time.Second

// Recorder is the record read/write surface timers go through.
type Recorder interface {
	GetRecord(ctx context.Context, id int64) (record.Record, error)
	UpdateRecord(ctx context.Context, id int64, changes record.Changes) (bool, error)
}

// Status describes one timer.
type Status struct {
	RecordID  int64         `json:"record_id"`
	WeekID    int64         `json:"week_id"`
	Running   bool          `json:"running"`
	Elapsed   time.Duration `json:"elapsed"`
	StartedAt time.Time     `json:"started_at"`
}

type run struct {
	recordID  int64
	weekID    int64
	startedAt time.Time
	// base is the duration accumulated before the current segment.
	base time.Duration
	// segment is the start of the running segment, zero while paused.
	segment time.Time
	written int64
	// writeMu orders duration writes for the record.
	writeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

func (r *run) elapsed(now time.Time) time.Duration {
	if r.segment.IsZero() {
		return r.base
	}
	return r.base + now.Sub(r.segment)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns every active timer.
type Manager struct {
	records  Recorder
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	timers map[int64]*run
}

// NewManager creates a timer manager. A non-positive interval uses
// DefaultInterval.
func NewManager(records Recorder, interval time.Duration, logger *slog.Logger, opts ...Option) *Manager {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		records:  records,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		timers:   make(map[int64]*run),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins timing a record from its current duration. The record's
// begin time is set if it has none.
func (m *Manager) Start(ctx context.Context, recordID int64) (Status, error) {
	rec, err := m.records.GetRecord(ctx, recordID)
	if err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	if _, ok := m.timers[recordID]; ok {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %d", ErrTimerRunning, recordID)
	}
	now := m.now()
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		recordID:  recordID,
		weekID:    rec.WeekID,
		startedAt: now,
		base:      rec.Duration(),
		segment:   now,
		written:   rec.DurationSeconds,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.timers[recordID] = r
	m.mu.Unlock()

	if rec.TimeBegin == nil {
		begin := now.UTC()
		if _, err := m.records.UpdateRecord(ctx, recordID, record.Changes{TimeBegin: &begin}); err != nil {
			m.logger.Warn("failed to set timer begin", "record_id", recordID, "error", err)
		}
	}

	go m.loop(loopCtx, r)
	m.logger.Info("timer started", "record_id", recordID, "base", r.base)
	return m.status(r, now), nil
}

// Pause stops accumulating time and persists the duration so far.
func (m *Manager) Pause(ctx context.Context, recordID int64) (Status, error) {
	m.mu.Lock()
	r, ok := m.timers[recordID]
	if !ok {
		m.mu.Unlock()
		return Status{}, fmt.Errorf("%w: %d", ErrNoTimer, recordID)
	}
	if r.segment.IsZero() {
		m.mu.Unlock()
		return Status{}, ErrPaused
	}
	now := m.now()
	r.base = r.elapsed(now)
	r.segment = time.Time{}
	st := m.status(r, now)
	m.mu.Unlock()

	m.flush(ctx, r)
	return st, nil
}

// Resume continues a paused timer.
func (m *Manager) Resume(recordID int64) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.timers[recordID]
	if !ok {
		return Status{}, fmt.Errorf("%w: %d", ErrNoTimer, recordID)
	}
	if !r.segment.IsZero() {
		return Status{}, ErrNotPaused
	}
	now := m.now()
	r.segment = now
	return m.status(r, now), nil
}

// Stop ends a timer, writes the final duration and end time, and returns
// the total duration.
func (m *Manager) Stop(ctx context.Context, recordID int64) (time.Duration, error) {
	m.mu.Lock()
	r, ok := m.timers[recordID]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrNoTimer, recordID)
	}
	delete(m.timers, recordID)
	m.mu.Unlock()

	r.cancel()
	<-r.done
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	m.mu.Lock()
	now := m.now()
	total := r.elapsed(now)
	m.mu.Unlock()
	seconds := int64(total / time.Second)
	end := now.UTC()
	if _, err := m.records.UpdateRecord(ctx, recordID, record.Changes{DurationSeconds: &seconds, TimeEnd: &end}); err != nil {
		return total, fmt.Errorf("saving timer for record %d: %w", recordID, err)
	}
	m.logger.Info("timer stopped", "record_id", recordID, "duration", total)
	return total, nil
}

// Status returns the state of one timer.
func (m *Manager) Status(recordID int64) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.timers[recordID]
	if !ok {
		return Status{}, false
	}
	return m.status(r, m.now()), true
}

// Active lists every timer ordered by record id.
func (m *Manager) Active() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]Status, 0, len(m.timers))
	for _, r := range m.timers {
		out = append(out, m.status(r, now))
	}
	slices.SortFunc(out, func(a, b Status) int {
		return cmp.Compare(a.RecordID, b.RecordID)
	})
	return out
}

// Close stops every timer, saving each one.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.timers))
	for id := range m.timers {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if _, err := m.Stop(ctx, id); err != nil && !errors.Is(err, ErrNoTimer) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) status(r *run, now time.Time) Status {
	return Status{
		RecordID:  r.recordID,
		WeekID:    r.weekID,
		Running:   !r.segment.IsZero(),
		Elapsed:   r.elapsed(now),
		StartedAt: r.startedAt,
	}
}

func (m *Manager) loop(ctx context.Context, r *run) {
	defer close(r.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.flush(ctx, r)
		}
	}
}

// flush writes the elapsed whole seconds if they changed since the last
// write.
func (m *Manager) flush(ctx context.Context, r *run) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	m.mu.Lock()
	seconds := int64(r.elapsed(m.now()) / time.Second)
	if seconds == r.written {
		m.mu.Unlock()
		return
	}
	r.written = seconds
	m.mu.Unlock()

	ok, err := m.records.UpdateRecord(ctx, r.recordID, record.Changes{DurationSeconds: &seconds})
	switch {
	case err != nil:
		m.logger.Warn("timer write failed", "record_id", r.recordID, "error", err)
	case !ok:
		m.logger.Warn("timed record no longer exists", "record_id", r.recordID)
	default:
		m.logger.Debug("timer saved", "record_id", r.recordID, "seconds", seconds)
	}
}

package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/tally/internal/events"
)

// Subscriber is the part of the data service the journal listens to.
type Subscriber interface {
	OnChange(h events.Handler) events.Subscription
	Unsubscribe(id events.Subscription) bool
}

// Service records change events in a durable journal.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new journal service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// Attach starts journaling every change published by src. The returned
// function detaches it.
func (s *Service) Attach(src Subscriber) func() {
	id := src.OnChange(func(ev events.Event) {
		entry := EntryFromEvent(ev)
		if err := s.Log(context.Background(), &entry); err != nil {
			s.logger.Warn("journal append failed", "event_id", entry.EventID, "error", err)
		}
	})
	return func() { src.Unsubscribe(id) }
}

// Log appends an entry with the current timestamp if missing.
func (s *Service) Log(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ChangeType == "" {
		return ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// Recent lists journal entries, newest first.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	return s.repo.List(ctx, opts)
}

// EntryFromEvent converts a change event into a journal entry.
func EntryFromEvent(ev events.Event) Entry {
	entry := Entry{
		EventID:   ev.ID.String(),
		WeekID:    ev.WeekID,
		CreatedAt: ev.At,
	}
	if ev.RecordID != 0 {
		id := ev.RecordID
		entry.RecordID = &id
	}
	switch ev.Kind {
	case events.KindCreated:
		entry.ChangeType = TypeRecordCreated
		entry.Summary = fmt.Sprintf("record %d created in week %d", ev.RecordID, ev.WeekID)
	case events.KindUpdated:
		entry.ChangeType = TypeRecordUpdated
		entry.Summary = fmt.Sprintf("record %d updated", ev.RecordID)
	case events.KindDeleted:
		entry.ChangeType = TypeRecordDeleted
		entry.Summary = fmt.Sprintf("record %d deleted from week %d", ev.RecordID, ev.WeekID)
	default:
		entry.ChangeType = TypeWeekReset
		entry.Summary = fmt.Sprintf("week %d reset", ev.WeekID)
	}
	return entry
}

package activity

import "time"

// ChangeType mirrors the kind of the event that produced the entry.
type ChangeType string

const (
	TypeRecordCreated ChangeType = "record_created"
	TypeRecordUpdated ChangeType = "record_updated"
	TypeRecordDeleted ChangeType = "record_deleted"
	TypeWeekReset     ChangeType = "week_reset"
)

// Entry is one line of the change journal.
type Entry struct {
	ID         int64      `json:"id"`
	EventID    string     `json:"event_id"`
	WeekID     int64      `json:"week_id"`
	RecordID   *int64     `json:"record_id,omitempty"`
	ChangeType ChangeType `json:"type"`
	Summary    string     `json:"summary"`
	CreatedAt  time.Time  `json:"created_at"`
}

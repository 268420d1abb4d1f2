// Package events carries record mutation events between the data service and
// its in-process subscribers.
package events

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind identifies the mutation an event describes.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
	// KindReset means every record of the week must be considered changed,
	// e.g. after the week itself was edited or removed.
	KindReset Kind = "reset"
)

// Event describes a single committed mutation.
type Event struct {
	ID       ulid.ULID `json:"id"`
	Kind     Kind      `json:"kind"`
	WeekID   int64     `json:"week_id"`
	RecordID int64     `json:"record_id,omitempty"`
	At       time.Time `json:"at"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEvent stamps an event with a time-ordered id.
func NewEvent(kind Kind, weekID, recordID int64) Event {
	now := time.Now()
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	return Event{
		ID:       id,
		Kind:     kind,
		WeekID:   weekID,
		RecordID: recordID,
		At:       now,
	}
}

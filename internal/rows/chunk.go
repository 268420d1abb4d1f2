package rows

import (
	"errors"

	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/events"
)

var (
	// ErrChunkLoadFailure is returned when a chunk could not be loaded and
	// no earlier rows were available to serve instead.
	ErrChunkLoadFailure = errors.New("chunk load failed")

	// ErrIndexOutOfRange is returned for a row index outside the week.
	ErrIndexOutOfRange = errors.New("row index out of range")

	// ErrInvalidOptions is returned for options that cannot drive a window.
	ErrInvalidOptions = errors.New("invalid row provider options")

	errSuperseded = errors.New("week changed during load")
)

// State is the lifecycle state of a loaded chunk. Unloaded chunks are not
// tracked.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateStale
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateStale:
		return "stale"
	default:
		return "unloaded"
	}
}

type chunkKey struct {
	weekID int64
	index  int
}

// chunk is a contiguous window of ChunkSize rows. While a reload is in
// flight, rows still holds the previous contents.
type chunk struct {
	key   chunkKey
	state State
	rows  []record.Record

	// dirty records a change event that arrived while the chunk was loading.
	dirty bool
	done  chan struct{}
	err   error
}

// affectedBy reports whether ev may change the contents of c. Rows are
// ordered by id, so an insert or delete shifts every row at or after the
// record; a short chunk is the tail and absorbs appends.
func (c *chunk) affectedBy(ev events.Event, chunkSize int) bool {
	if ev.WeekID != c.key.weekID {
		return false
	}
	if c.state == StateLoading || ev.Kind == events.KindReset {
		return true
	}
	switch ev.Kind {
	case events.KindUpdated:
		for _, r := range c.rows {
			if r.ID == ev.RecordID {
				return true
			}
		}
		return false
	case events.KindCreated, events.KindDeleted:
		if len(c.rows) < chunkSize {
			return true
		}
		return c.rows[len(c.rows)-1].ID >= ev.RecordID
	}
	return false
}

// ChunkInfo describes one chunk in the window.
type ChunkInfo struct {
	WeekID int64  `json:"week_id"`
	Index  int    `json:"index"`
	State  string `json:"state"`
	Rows   int    `json:"rows"`
}

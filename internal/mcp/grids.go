package mcp

import (
	"sync"
	"time"
)

// DefaultGridIdle is how long a session's grid survives without use.
const DefaultGridIdle = 30 * time.Minute

// Grid is a row provider owned by one session.
type Grid interface {
	GridService
	Close()
}

// GridSessions gives each MCP session its own Grid so sessions scrolling
// different weeks do not evict each other's chunks. Grids idle longer than
// the idle timeout are closed on the next lookup.
type GridSessions struct {
	open func() (Grid, error)
	idle time.Duration
	now  func() time.Time

	mu     sync.Mutex
	grids  map[string]*sessionGrid
	closed bool
}

type sessionGrid struct {
	grid     Grid
	lastUsed time.Time
}

// NewGridSessions returns an empty registry that opens grids with open. A
// non-positive idle uses DefaultGridIdle.
func NewGridSessions(open func() (Grid, error), idle time.Duration) *GridSessions {
	if idle <= 0 {
		idle = DefaultGridIdle
	}
	return &GridSessions{
		open:  open,
		idle:  idle,
		now:   time.Now,
		grids: make(map[string]*sessionGrid),
	}
}

// For returns the grid of sessionID, opening one on first use. Stdio
// sessions have an empty id and share one grid.
func (g *GridSessions) For(sessionID string) (GridService, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweepLocked(now, sessionID)

	if sg, ok := g.grids[sessionID]; ok {
		sg.lastUsed = now
		return sg.grid, nil
	}
	grid, err := g.open()
	if err != nil {
		return nil, err
	}
	if g.closed {
		grid.Close()
		return grid, nil
	}
	g.grids[sessionID] = &sessionGrid{grid: grid, lastUsed: now}
	return grid, nil
}

// Len returns the number of open grids.
func (g *GridSessions) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.grids)
}

// Close closes every grid. Later lookups get grids that are closed
// immediately.
func (g *GridSessions) Close() {
	g.mu.Lock()
	grids := g.grids
	g.grids = make(map[string]*sessionGrid)
	g.closed = true
	g.mu.Unlock()

	for _, sg := range grids {
		sg.grid.Close()
	}
}

// sweepLocked closes grids idle past the timeout, except keep's.
func (g *GridSessions) sweepLocked(now time.Time, keep string) {
	for id, sg := range g.grids {
		if id != keep && now.Sub(sg.lastUsed) > g.idle {
			sg.grid.Close()
			delete(g.grids, id)
		}
	}
}

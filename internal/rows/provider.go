// Package rows serves a week's records to a virtualized grid in fixed-size
// chunks, keeping a small LRU window of chunks loaded and reloading chunks
// that change events mark stale.
package rows

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/rpggio/tally/internal/domain/record"
	"github.com/rpggio/tally/internal/events"
)

// maxLoadAttempts bounds reloads of a chunk whose week was torn down while
// the chunk was loading.
const maxLoadAttempts = 3

// Source is the read surface the provider loads through.
type Source interface {
	CountRecords(ctx context.Context, weekID int64) (int, error)
	ListRecords(ctx context.Context, weekID int64, opts record.ListOptions) ([]record.Record, error)
	OnChange(h events.Handler) events.Subscription
	Unsubscribe(id events.Subscription) bool
}

// Options sizes the chunk window.
type Options struct {
	ChunkSize       int `yaml:"chunk_size" json:"chunk_size"`
	MaxLoadedChunks int `yaml:"max_loaded_chunks" json:"max_loaded_chunks"`
	// PrefetchMargin is the distance from a chunk edge, in rows, at which the
	// adjacent chunk is loaded ahead. Zero disables prefetch.
	PrefetchMargin int `yaml:"prefetch_margin" json:"prefetch_margin"`
	// PrefetchPerSecond caps background loads. Zero means unlimited.
	PrefetchPerSecond float64 `yaml:"prefetch_per_second" json:"prefetch_per_second"`
}

// DefaultOptions returns the options used for a zero Options value.
func DefaultOptions() Options {
	return Options{
		ChunkSize:         100,
		MaxLoadedChunks:   5,
		PrefetchMargin:    10,
		PrefetchPerSecond: 20,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	switch {
	case o.ChunkSize < 1:
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, o.ChunkSize)
	case o.MaxLoadedChunks < 1:
		return fmt.Errorf("%w: max loaded chunks must be positive, got %d", ErrInvalidOptions, o.MaxLoadedChunks)
	case o.PrefetchMargin < 0 || o.PrefetchMargin > o.ChunkSize:
		return fmt.Errorf("%w: prefetch margin must be within [0, %d], got %d", ErrInvalidOptions, o.ChunkSize, o.PrefetchMargin)
	case o.PrefetchPerSecond < 0:
		return fmt.Errorf("%w: prefetch rate must not be negative", ErrInvalidOptions)
	}
	return nil
}

func limitFor(perSecond float64) rate.Limit {
	if perSecond == 0 {
		return rate.Inf
	}
	return rate.Limit(perSecond)
}

// Provider is a chunked row source for one grid view.
type Provider struct {
	src    Source
	logger *slog.Logger
	sub    events.Subscription

	mu        sync.Mutex
	opts      Options
	chunks    map[chunkKey]*list.Element
	lru       *list.List
	gens      map[int64]uint64
	lastIndex map[int64]int
	closed    bool

	limiter *rate.Limiter
	wg      sync.WaitGroup
}

// NewProvider creates a provider and subscribes it to src's change events.
// Call Close to release the subscription.
func NewProvider(src Source, opts Options, logger *slog.Logger) (*Provider, error) {
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Provider{
		src:       src,
		logger:    logger,
		opts:      opts,
		chunks:    make(map[chunkKey]*list.Element),
		lru:       list.New(),
		gens:      make(map[int64]uint64),
		lastIndex: make(map[int64]int),
		limiter:   rate.NewLimiter(limitFor(opts.PrefetchPerSecond), 1),
	}
	p.sub = src.OnChange(p.onChange)
	return p, nil
}

// Configure replaces the options and drops every loaded chunk.
func (p *Provider) Configure(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
	p.chunks = make(map[chunkKey]*list.Element)
	p.lru.Init()
	p.lastIndex = make(map[int64]int)
	p.limiter.SetLimit(limitFor(opts.PrefetchPerSecond))
	p.logger.Debug("row provider configured",
		"chunk_size", opts.ChunkSize,
		"max_loaded_chunks", opts.MaxLoadedChunks,
		"prefetch_margin", opts.PrefetchMargin)
	return nil
}

// Options returns the current options.
func (p *Provider) Options() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// RowCount returns the number of rows in a week.
func (p *Provider) RowCount(ctx context.Context, weekID int64) (int, error) {
	return p.src.CountRecords(ctx, weekID)
}

// RowAt returns the row at index, loading its chunk if it is absent or
// stale.
func (p *Provider) RowAt(ctx context.Context, weekID int64, index int) (record.Record, error) {
	if index < 0 {
		return record.Record{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	p.mu.Lock()
	size := p.opts.ChunkSize
	key := chunkKey{weekID: weekID, index: index / size}
	if _, ok := p.chunks[key]; !ok {
		// Check the count before inserting a chunk so an index past the end
		// does not evict a chunk in view.
		p.mu.Unlock()
		n, err := p.src.CountRecords(ctx, weekID)
		if err != nil {
			return record.Record{}, fmt.Errorf("%w: %w", ErrChunkLoadFailure, err)
		}
		if index >= n {
			return record.Record{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		p.mu.Lock()
		size = p.opts.ChunkSize
		key = chunkKey{weekID: weekID, index: index / size}
	}
	rows, err := p.fetchLocked(ctx, key, size)
	if err != nil {
		return record.Record{}, err
	}
	offset := index % size
	if offset >= len(rows) {
		return record.Record{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	p.mu.Lock()
	p.maybePrefetch(weekID, index)
	p.mu.Unlock()

	return rows[offset], nil
}

// Window lists the loaded chunks, most recently used first.
func (p *Provider) Window() []ChunkInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ChunkInfo, 0, p.lru.Len())
	for el := p.lru.Front(); el != nil; el = el.Next() {
		c := el.Value.(*chunk)
		out = append(out, ChunkInfo{
			WeekID: c.key.weekID,
			Index:  c.key.index,
			State:  c.state.String(),
			Rows:   len(c.rows),
		})
	}
	return out
}

// Generation returns the teardown counter of a week.
func (p *Provider) Generation(weekID int64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[weekID]
}

// Wait blocks until in-flight prefetches finish.
func (p *Provider) Wait() {
	p.wg.Wait()
}

// Close unsubscribes from change events and waits for prefetches.
func (p *Provider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.src.Unsubscribe(p.sub)
	p.wg.Wait()
}

// fetchLocked returns the rows of a chunk. Concurrent callers for a chunk
// that is loading for the first time wait for that load; callers for a chunk
// that is reloading get its previous rows. It is called with p.mu held and
// returns with it released.
func (p *Provider) fetchLocked(ctx context.Context, key chunkKey, size int) ([]record.Record, error) {
	for {
		c := p.lookup(key)
		switch c.state {
		case StateLoaded:
			rows := c.rows
			p.mu.Unlock()
			return rows, nil

		case StateLoading:
			// A dirty reload saw a change land after it began, so its
			// previous rows predate a completed write.
			if c.rows != nil && !c.dirty {
				rows := c.rows
				p.mu.Unlock()
				return rows, nil
			}
			done := c.done
			p.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			p.mu.Lock()
			if c.err != nil {
				p.mu.Unlock()
				return nil, fmt.Errorf("%w: %w", ErrChunkLoadFailure, c.err)
			}
			if c.state == StateLoaded {
				rows := c.rows
				p.mu.Unlock()
				return rows, nil
			}
			continue
		}

		prev := c.rows
		err := p.load(ctx, c, size)
		rows := c.rows
		p.mu.Unlock()

		if err == nil {
			return rows, nil
		}
		p.logger.Warn("chunk load failed",
			"week_id", key.weekID,
			"chunk", key.index,
			"served_previous", prev != nil,
			"error", err)
		if prev != nil {
			return prev, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrChunkLoadFailure, err)
	}
}

// lookup returns the chunk for key as most recently used, inserting an
// unloaded chunk and evicting the least recently used ones as needed.
// Must be called with p.mu held.
func (p *Provider) lookup(key chunkKey) *chunk {
	if el, ok := p.chunks[key]; ok {
		p.lru.MoveToFront(el)
		return el.Value.(*chunk)
	}
	c := &chunk{key: key}
	p.chunks[key] = p.lru.PushFront(c)
	for p.lru.Len() > p.opts.MaxLoadedChunks {
		oldest := p.lru.Back()
		evicted := oldest.Value.(*chunk)
		p.lru.Remove(oldest)
		delete(p.chunks, evicted.key)
		p.logger.Debug("chunk evicted", "week_id", evicted.key.weekID, "chunk", evicted.key.index)
	}
	return c
}

// load reads the chunk from the source. It is called and returns with p.mu
// held, releasing it around the read. A load that overlaps a teardown of its
// week is discarded and retried.
func (p *Provider) load(ctx context.Context, c *chunk, size int) error {
	c.state = StateLoading
	c.err = nil
	c.done = make(chan struct{})
	done := c.done

	var (
		rows []record.Record
		err  error
	)
	for attempt := 1; attempt <= maxLoadAttempts; attempt++ {
		c.dirty = false
		gen := p.gens[c.key.weekID]
		p.mu.Unlock()
		rows, err = p.src.ListRecords(ctx, c.key.weekID, record.ListOptions{
			Offset: c.key.index * size,
			Limit:  size,
		})
		p.mu.Lock()
		if err != nil {
			break
		}
		if p.gens[c.key.weekID] == gen {
			break
		}
		p.logger.Debug("discarding chunk load after teardown",
			"week_id", c.key.weekID, "chunk", c.key.index, "attempt", attempt)
		err = errSuperseded
	}

	if err != nil {
		c.err = err
		c.state = StateUnloaded
		if el, ok := p.chunks[c.key]; ok && el.Value == c {
			p.lru.Remove(el)
			delete(p.chunks, c.key)
		}
	} else {
		c.rows = rows
		c.state = StateLoaded
		if c.dirty {
			c.state = StateStale
		}
	}
	close(done)
	return err
}

// maybePrefetch starts a background load of the chunk adjacent to index in
// the direction of travel. Must be called with p.mu held.
func (p *Provider) maybePrefetch(weekID int64, index int) {
	last, seen := p.lastIndex[weekID]
	p.lastIndex[weekID] = index
	if !seen || index == last || p.closed {
		return
	}
	margin := p.opts.PrefetchMargin
	if margin == 0 || p.opts.MaxLoadedChunks < 2 {
		return
	}

	size := p.opts.ChunkSize
	current := index / size
	offset := index % size
	var target int
	switch {
	case index > last && offset >= size-margin:
		target = current + 1
	case index < last && offset < margin && current > 0:
		target = current - 1
	default:
		return
	}

	// Only absent chunks are prefetched. A stale chunk is reloaded by the
	// next foreground read so that read never sees rows older than a
	// completed write.
	key := chunkKey{weekID: weekID, index: target}
	if _, ok := p.chunks[key]; ok {
		return
	}
	if !p.limiter.Allow() {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx := context.Background()
		if target > current {
			n, err := p.src.CountRecords(ctx, weekID)
			if err != nil || target*size >= n {
				return
			}
		}
		p.mu.Lock()
		if _, ok := p.chunks[key]; ok || p.opts.ChunkSize != size {
			p.mu.Unlock()
			return
		}
		if _, err := p.fetchLocked(ctx, key, size); err != nil {
			p.logger.Debug("prefetch failed", "week_id", weekID, "chunk", target, "error", err)
		}
	}()
}

// onChange marks chunks touched by ev stale. Deletes and resets also advance
// the week generation so loads started before them are discarded.
func (p *Provider) onChange(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Kind == events.KindDeleted || ev.Kind == events.KindReset {
		p.gens[ev.WeekID]++
	}
	for el := p.lru.Front(); el != nil; el = el.Next() {
		c := el.Value.(*chunk)
		if !c.affectedBy(ev, p.opts.ChunkSize) {
			continue
		}
		switch c.state {
		case StateLoaded:
			c.state = StateStale
		case StateLoading:
			c.dirty = true
		}
	}
}

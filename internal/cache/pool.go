// Package cache provides bounded in-memory key/value pools with LRU eviction
// and per-entry TTL, grouped into a registry of named pools.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stats is a point-in-time view of a pool's counters.
type Stats struct {
	Name        string        `json:"name"`
	Hits        uint64        `json:"hits"`
	Misses      uint64        `json:"misses"`
	Evictions   uint64        `json:"evictions"`
	Expirations uint64        `json:"expirations"`
	Size        int           `json:"size"`
	MaxSize     int           `json:"max_size"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key          string
	value        any
	insertedAt   time.Time
	lastAccessed time.Time
	ttl          time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) >= e.ttl
}

// Option configures a Pool or Registry.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Pool is a bounded, thread-safe cache. The front of the list is the most
// recently used entry.
type Pool struct {
	name       string
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	mu          sync.Mutex
	ll          *list.List
	items       map[string]*list.Element
	generation  uint64
	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// NewPool creates a pool holding at most maxSize entries. A zero defaultTTL
// means entries without an explicit TTL never expire.
func NewPool(name string, maxSize int, defaultTTL time.Duration, opts ...Option) *Pool {
	if maxSize < 1 {
		panic(fmt.Sprintf("cache: pool %q max size must be positive, got %d", name, maxSize))
	}
	o := buildOptions(opts)
	return &Pool{
		name:       name,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        o.now,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Get returns the value for key. Expired entries are removed and reported
// as a miss.
func (p *Pool) Get(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	el, ok := p.items[key]
	if !ok {
		p.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	now := p.now()
	if e.expired(now) {
		p.removeElement(el)
		p.expirations++
		p.misses++
		return nil, false
	}
	e.lastAccessed = now
	p.ll.MoveToFront(el)
	p.hits++
	return e.value, true
}

// Put stores value under key with the pool's default TTL.
func (p *Pool) Put(key string, value any) {
	p.PutTTL(key, value, 0)
}

// PutTTL stores value under key. A zero ttl uses the pool default.
func (p *Pool) PutTTL(key string, value any, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.put(key, value, ttl)
}

func (p *Pool) put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = p.defaultTTL
	}
	now := p.now()

	if el, ok := p.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = now
		e.lastAccessed = now
		e.ttl = ttl
		p.ll.MoveToFront(el)
		return
	}

	if p.ll.Len() >= p.maxSize {
		if oldest := p.ll.Back(); oldest != nil {
			p.removeElement(oldest)
			p.evictions++
		}
	}

	p.items[key] = p.ll.PushFront(&entry{
		key:          key,
		value:        value,
		insertedAt:   now,
		lastAccessed: now,
		ttl:          ttl,
	})
}

// putIfGeneration stores value only if no invalidation happened since gen
// was read.
func (p *Pool) putIfGeneration(key string, value any, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen {
		return false
	}
	p.put(key, value, 0)
	return true
}

// Invalidate removes every key containing substr and returns the number of
// removed entries. An empty substr clears the pool.
func (p *Pool) Invalidate(substr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	if substr == "" {
		n := p.ll.Len()
		p.ll.Init()
		clear(p.items)
		return n
	}

	removed := 0
	for key, el := range p.items {
		if strings.Contains(key, substr) {
			p.removeElement(el)
			removed++
		}
	}
	return removed
}

// Delete removes key and reports whether it was present.
func (p *Pool) Delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	el, ok := p.items[key]
	if !ok {
		return false
	}
	p.removeElement(el)
	return true
}

// Len returns the number of resident entries, expired or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ll.Len()
}

// Keys returns resident keys from most to least recently used.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, p.ll.Len())
	for el := p.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys
}

// Generation returns a counter bumped by every invalidation.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:        p.name,
		Hits:        p.hits,
		Misses:      p.misses,
		Evictions:   p.evictions,
		Expirations: p.expirations,
		Size:        p.ll.Len(),
		MaxSize:     p.maxSize,
		DefaultTTL:  p.defaultTTL,
	}
}

func (p *Pool) removeElement(el *list.Element) {
	p.ll.Remove(el)
	delete(p.items, el.Value.(*entry).key)
}

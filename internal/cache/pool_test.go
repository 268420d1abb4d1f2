package cache

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestPool_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	p := NewPool("records", 10, time.Minute, WithClock(clock.Now))

	p.PutTTL("k", "v", 10*time.Second)
	v, ok := p.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)

	clock.Advance(9 * time.Second)
	_, ok = p.Get("k")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = p.Get("k")
	require.False(t, ok, "entry must expire once age reaches ttl")
	require.Equal(t, 0, p.Len(), "expired entry is removed on get")
	require.Equal(t, uint64(1), p.Stats().Expirations)
}

func TestPool_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	p := NewPool("records", 10, time.Minute, WithClock(clock.Now))

	p.Put("k", 1)
	clock.Advance(59 * time.Second)
	_, ok := p.Get("k")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = p.Get("k")
	require.False(t, ok)
}

func TestPool_NoTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	p := NewPool("records", 10, 0, WithClock(clock.Now))

	p.Put("k", 1)
	clock.Advance(365 * 24 * time.Hour)
	_, ok := p.Get("k")
	require.True(t, ok)
}

func TestPool_PutRefreshesInsertionTime(t *testing.T) {
	clock := newFakeClock()
	p := NewPool("records", 10, 10*time.Second, WithClock(clock.Now))

	p.Put("k", 1)
	clock.Advance(8 * time.Second)
	p.Put("k", 2)
	clock.Advance(8 * time.Second)

	v, ok := p.Get("k")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestPool_LRUEvictionOrder(t *testing.T) {
	p := NewPool("records", 3, 0)

	p.Put("A", 1)
	p.Put("B", 2)
	p.Put("C", 3)
	p.Put("D", 4)

	_, ok := p.Get("A")
	require.False(t, ok, "A is least recently used and must be evicted")

	_, ok = p.Get("B")
	require.True(t, ok)

	p.Put("E", 5)
	_, ok = p.Get("C")
	require.False(t, ok, "C must be evicted after B was refreshed")
	for _, k := range []string{"B", "D", "E"} {
		_, ok := p.Get(k)
		require.True(t, ok, "key %s should remain", k)
	}
	require.Equal(t, uint64(2), p.Stats().Evictions)
}

func TestPool_UpdateExistingKeyDoesNotEvict(t *testing.T) {
	p := NewPool("records", 2, 0)

	p.Put("A", 1)
	p.Put("B", 2)
	p.Put("A", 10)
	require.Equal(t, 2, p.Len())
	require.Equal(t, []string{"A", "B"}, p.Keys())

	p.Put("C", 3)
	_, ok := p.Get("B")
	require.False(t, ok, "B became least recently used after A was rewritten")
}

func TestPool_CapacityInvariant(t *testing.T) {
	p := NewPool("records", 7, 0)
	for i := range 500 {
		p.Put(fmt.Sprintf("k%d", rand.IntN(50)), i)
		require.LessOrEqual(t, p.Len(), 7)
	}
}

func TestPool_InvalidateSubstring(t *testing.T) {
	p := NewPool("record_lists", 10, 0)
	p.Put("week:7:records:0:100", 1)
	p.Put("week:7:records:100:100", 2)
	p.Put("week:17:records:0:100", 3)
	p.Put("week:70:records:0:100", 4)

	removed := p.Invalidate("week:7:")
	require.Equal(t, 2, removed)
	for _, k := range p.Keys() {
		require.NotContains(t, k, "week:7:")
	}
	require.ElementsMatch(t, []string{"week:17:records:0:100", "week:70:records:0:100"}, p.Keys())
}

func TestPool_InvalidateAll(t *testing.T) {
	p := NewPool("records", 10, 0)
	p.Put("a", 1)
	p.Put("b", 2)

	require.Equal(t, 2, p.Invalidate(""))
	require.Equal(t, 0, p.Len())

	p.Put("c", 3)
	_, ok := p.Get("c")
	require.True(t, ok, "pool stays usable after a clear")
}

func TestPool_DeleteAndGeneration(t *testing.T) {
	p := NewPool("records", 10, 0)
	p.Put("a", 1)

	gen := p.Generation()
	require.True(t, p.Delete("a"))
	require.False(t, p.Delete("a"))
	require.Greater(t, p.Generation(), gen)

	gen = p.Generation()
	require.False(t, p.putIfGeneration("b", 2, gen-1))
	require.True(t, p.putIfGeneration("b", 2, gen))
}

func TestPool_Stats(t *testing.T) {
	p := NewPool("aggregates", 4, time.Minute)
	p.Put("a", 1)
	p.Get("a")
	p.Get("a")
	p.Get("missing")

	stats := p.Stats()
	require.Equal(t, "aggregates", stats.Name)
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, 1, stats.Size)
	require.Equal(t, 4, stats.MaxSize)
	require.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
	require.Zero(t, Stats{}.HitRate())
}

func TestNewPool_RejectsNonPositiveSize(t *testing.T) {
	require.Panics(t, func() { NewPool("bad", 0, 0) })
}

func TestPool_ConcurrentAccess(t *testing.T) {
	const (
		maxSize    = 16
		goroutines = 16
		ops        = 2000
	)
	clock := newFakeClock()
	p := NewPool("records", maxSize, 50*time.Millisecond, WithClock(clock.Now))

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed*31+7))
			for i := range ops {
				key := fmt.Sprintf("week:%d:k%d", rng.IntN(4), rng.IntN(64))
				switch rng.IntN(10) {
				case 0:
					p.Invalidate(fmt.Sprintf("week:%d:", rng.IntN(4)))
				case 1:
					clock.Advance(time.Millisecond)
				case 2, 3, 4:
					p.Get(key)
				default:
					p.Put(key, i)
				}
				if n := p.Len(); n > maxSize {
					t.Errorf("pool size %d exceeds max %d", n, maxSize)
					return
				}
			}
		}(uint64(g + 1))
	}
	wg.Wait()

	require.LessOrEqual(t, p.Len(), maxSize)
	stats := p.Stats()
	require.Equal(t, p.Len(), stats.Size)
}

package cache

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// PoolConfig is the capacity and default TTL of one named pool.
type PoolConfig struct {
	MaxSize int           `yaml:"max_size" json:"max_size"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// Registry owns a fixed set of named pools. The set is static configuration:
// asking for a pool that was not configured is a programming error.
type Registry struct {
	pools  map[string]*Pool
	names  []string
	group  singleflight.Group
	logger *slog.Logger
}

// NewRegistry builds one pool per table entry.
func NewRegistry(table map[string]PoolConfig, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		pools:  make(map[string]*Pool, len(table)),
		logger: logger,
	}
	for name, cfg := range table {
		r.pools[name] = NewPool(name, cfg.MaxSize, cfg.TTL, opts...)
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r
}

// Pool returns the named pool and panics if it is not configured.
func (r *Registry) Pool(name string) *Pool {
	p, ok := r.pools[name]
	if !ok {
		panic(fmt.Sprintf("cache: unknown pool %q", name))
	}
	return p
}

// Has reports whether the named pool is configured.
func (r *Registry) Has(name string) bool {
	_, ok := r.pools[name]
	return ok
}

// InvalidatePattern removes every key in the pool containing substr. An
// empty substr clears the pool.
func (r *Registry) InvalidatePattern(pool, substr string) int {
	n := r.Pool(pool).Invalidate(substr)
	if n > 0 {
		r.logger.Debug("cache invalidated", "pool", pool, "pattern", substr, "removed", n)
	}
	return n
}

// Delete removes a single key from the pool.
func (r *Registry) Delete(pool, key string) bool {
	return r.Pool(pool).Delete(key)
}

// Stats returns the counters of every pool ordered by name.
func (r *Registry) Stats() []Stats {
	out := make([]Stats, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.pools[name].Stats())
	}
	return out
}

// CachedQuery returns the cached value for key, calling compute only on a
// miss. Compute errors are returned and nothing is stored. Concurrent misses
// for the same key are coalesced into one compute. A result whose compute
// overlapped an invalidation of the pool is returned but not stored.
func CachedQuery[T any](r *Registry, pool, key string, compute func() (T, error)) (T, error) {
	p := r.Pool(pool)
	if v, ok := p.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	gen := p.Generation()
	v, err, _ := r.group.Do(pool+"|"+strconv.FormatUint(gen, 10)+"|"+key, func() (any, error) {
		val, err := compute()
		if err != nil {
			return nil, err
		}
		if !p.putIfGeneration(key, val, gen) {
			r.logger.Debug("cache result not stored after invalidation", "pool", pool, "key", key)
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

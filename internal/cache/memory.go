package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter"

	"github.com/rafaeljc/slipup/internal/observability"
)

// MemoryCache acts as the L1 caching layer using a high-performance,
// contention-free algorithm (S3-FIFO) provided by the 'otter' library.
type MemoryCache[V any] struct {
	store otter.Cache[string, V]

	lastEvicted  int64
	lastRejected int64
}

// NewMemoryCache initializes the in-memory cache with strict limits.
// capacity: Max number of items (Hard Cap to prevent OOM).
// ttl: Time-To-Live for items.
func NewMemoryCache[V any](capacity int, ttl time.Duration) (*MemoryCache[V], error) {
	builder, err := otter.NewBuilder[string, V](capacity)
	if err != nil {
		return nil, err
	}

	cache, err := builder.CollectStats().WithTTL(ttl).Build()
	if err != nil {
		return nil, err
	}

	return &MemoryCache[V]{store: cache}, nil
}

// Get retrieves a value from memory, recording the hit or miss.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	v, ok := c.store.Get(key)
	if ok {
		observability.ResolverCacheHits.Inc()
	} else {
		observability.ResolverCacheMisses.Inc()
	}
	return v, ok
}

// Set adds or updates a value. The configured TTL applies automatically.
func (c *MemoryCache[V]) Set(key string, v V) {
	c.store.Set(key, v)
}

// Clear drops every entry.
func (c *MemoryCache[V]) Clear() {
	c.store.Clear()
}

// Len returns the number of entries currently held.
func (c *MemoryCache[V]) Len() int {
	return c.store.Size()
}

// RunMetricsCollector periodically exports usage, evictions and rejected sets.
// It must run in its own goroutine and stops when ctx is cancelled.
func (c *MemoryCache[V]) RunMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *MemoryCache[V]) collect() {
	stats := c.store.Stats()
	observability.ResolverCacheUsage.Set(float64(c.store.Size()))

	if evicted := stats.EvictedCount(); evicted > c.lastEvicted {
		observability.ResolverCacheEvictions.Add(float64(evicted - c.lastEvicted))
		c.lastEvicted = evicted
	}
	if rejected := stats.RejectedSets(); rejected > c.lastRejected {
		observability.ResolverCacheDropped.Add(float64(rejected - c.lastRejected))
		c.lastRejected = rejected
	}
}

// Close gracefully shuts down the cache and its background cleanup goroutines.
func (c *MemoryCache[V]) Close() {
	c.store.Close()
}

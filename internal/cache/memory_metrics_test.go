package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/slipup/internal/cache"
	"github.com/rafaeljc/slipup/internal/testsupport"
)

func TestMemoryCache_Metrics(t *testing.T) {
	// Setup: Low capacity cache to force evictions easily
	c, err := cache.NewMemoryCache[string](10, 1*time.Minute)
	require.NoError(t, err)
	defer c.Close()

	// 1. Hotpath Metrics (Hits/Misses)
	t.Run("records access metrics", func(t *testing.T) {
		t.Run("misses", func(t *testing.T) {
			testsupport.AssertMetricDelta(t, "slipup_resolver_l1_cache_misses_total", nil, 1, func() {
				_, found := c.Get("non-existent-key")
				assert.False(t, found)
			})
		})

		t.Run("hits", func(t *testing.T) {
			c.Set("1:flag_email_import", "true")
			testsupport.AssertMetricDelta(t, "slipup_resolver_l1_cache_hits_total", nil, 1, func() {
				val, found := c.Get("1:flag_email_import")
				assert.True(t, found)
				assert.Equal(t, "true", val)
			})
		})
	})

	// 2. Background Metrics (Collector)
	t.Run("async collector metrics", func(t *testing.T) {
		ctx := t.Context()

		go c.RunMetricsCollector(ctx, 10*time.Millisecond)

		t.Run("reflects items usage", func(t *testing.T) {
			for i := range 5 {
				key := fmt.Sprintf("k-%d", i)
				c.Set(key, key)
			}

			require.Eventually(t, func() bool {
				val := testsupport.GetMetricValue(t, "slipup_resolver_l1_cache_items_count", nil)
				return val >= 5
			}, 2*time.Second, 50*time.Millisecond, "usage metric failed to update")
		})

		t.Run("reflects evictions", func(t *testing.T) {
			// Flood cache (Capacity 10 -> Write 100) to force eviction
			for i := range 100 {
				key := fmt.Sprintf("overflow-%d", i)
				c.Set(key, key)
			}

			require.Eventually(t, func() bool {
				val := testsupport.GetMetricValue(t, "slipup_resolver_l1_cache_evictions_total", nil)
				return val > 0
			}, 2*time.Second, 50*time.Millisecond, "evictions metric failed to increment")
		})

		t.Run("reflects dropped items (stress test)", func(t *testing.T) {
			var wg sync.WaitGroup
			for i := range 20 {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := range 100 {
						c.Set(fmt.Sprintf("stress-%d-%d", id, j), "v")
					}
				}(i)
			}
			wg.Wait()

			// May stay at 0 on fast hardware
			val := testsupport.GetMetricValue(t, "slipup_resolver_l1_cache_dropped_total", nil)
			assert.GreaterOrEqual(t, val, 0.0)
		})
	})
}

func TestMemoryCache_Clear(t *testing.T) {
	c, err := cache.NewMemoryCache[int](16, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, 10*time.Millisecond)

	c.Clear()

	_, found := c.Get("a")
	assert.False(t, found)
}

func TestNewMemoryCache_InvalidCapacity(t *testing.T) {
	_, err := cache.NewMemoryCache[int](0, time.Minute)

	assert.Error(t, err)
}

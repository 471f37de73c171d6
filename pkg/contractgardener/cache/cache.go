package cache

import (
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/ensemble"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/metrics"
)

// Cache provides thread-safe caching of model predictions per station with TTL
type Cache struct {
	data   map[key]*cacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	maxAge time.Duration
	stopCh chan struct{}
	once   sync.Once
	stats  *stats
}

type key struct {
	station string
	model   string
}

type cacheEntry struct {
	output    *ensemble.ModelOutput
	timestamp time.Time
	hits      int64
}

type stats struct {
	hits   int64
	misses int64
	mutex  sync.RWMutex
}

// New creates a new cache instance
func New(ttl time.Duration, maxAge time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	c := &Cache{
		data: make(map[key]*cacheEntry),
		// Freshness at get time
		ttl: ttl,
		// Age to clean up unaccessed items
		maxAge: maxAge,
		stopCh: make(chan struct{}),
		stats:  &stats{},
	}

	go c.cleanup()

	return c
}

// Get returns a copy of a cached prediction if it is still fresh
func (c *Cache) Get(station, model string) (*ensemble.ModelOutput, bool) {
	k := key{station: station, model: model}

	c.mutex.RLock()
	entry, exists := c.data[k]
	c.mutex.RUnlock()

	if !exists || time.Since(entry.timestamp) > c.ttl {
		c.recordMiss(model)
		return nil, false
	}

	c.mutex.Lock()
	entry.hits++
	c.mutex.Unlock()
	c.recordHit(model)

	return clone(entry.output), true
}

// Set stores a prediction. Unavailable outputs are not cached so that a
// failed model is retried on the next request.
func (c *Cache) Set(station, model string, output *ensemble.ModelOutput) {
	if output == nil || !output.Available {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key{station: station, model: model}] = &cacheEntry{
		output:    clone(output),
		timestamp: time.Now(),
	}

	klog.V(4).InfoS("Cached model prediction",
		"station", station,
		"model", model,
		"samples", len(output.Samples))
}

// GetMetrics returns cache performance counters
func (c *Cache) GetMetrics() (hits, misses int64) {
	c.stats.mutex.RLock()
	defer c.stats.mutex.RUnlock()
	return c.stats.hits, c.stats.misses
}

func (c *Cache) recordHit(model string) {
	c.stats.mutex.Lock()
	c.stats.hits++
	c.stats.mutex.Unlock()
	metrics.PredictorCacheHits.WithLabelValues(model).Inc()
}

func (c *Cache) recordMiss(model string) {
	c.stats.mutex.Lock()
	c.stats.misses++
	c.stats.mutex.Unlock()
	metrics.PredictorCacheMisses.WithLabelValues(model).Inc()
}

// cleanup periodically removes expired entries
func (c *Cache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for k, entry := range c.data {
		age := now.Sub(entry.timestamp)
		if age > c.maxAge {
			delete(c.data, k)
			klog.V(4).InfoS("Removed expired cache entry",
				"station", k.station,
				"model", k.model,
				"age", age.String(),
				"hits", entry.hits)
		}
	}
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}

// Size returns the number of entries in the cache
func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

func clone(out *ensemble.ModelOutput) *ensemble.ModelOutput {
	cp := *out
	cp.Samples = append([]float64(nil), out.Samples...)
	return &cp
}

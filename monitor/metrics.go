// Package monitor collects in-memory counters for the retrieval subsystem.
package monitor

import "sync"

// Counter names used across the subsystem.
const (
	ProviderCalls      = "provider_calls"
	ProviderFailures   = "provider_failures"
	CircuitOpens       = "circuit_opens"
	CircuitFastFails   = "circuit_fast_fails"
	CacheHitsLocal     = "cache_hits_local"
	CacheHitsShared    = "cache_hits_shared"
	CacheMisses        = "cache_misses"
	ChunksIndexed      = "chunks_indexed"
	ChunksSkipped      = "chunks_skipped"
	SearchesServed     = "searches_served"
	SearchCacheHits    = "search_cache_hits"
	SearchFallbacks    = "search_fallbacks"
	QuestionsAnswered  = "questions_answered"
	ManualCosineRanked = "manual_cosine_ranked"
)

// Collector accumulates named counters. All methods are safe for concurrent
// use and safe on a nil receiver, so components may run unmonitored.
type Collector struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{counters: make(map[string]int64)}
}

// Inc increments the named counter by one.
func (c *Collector) Inc(name string) {
	c.Add(name, 1)
}

// Add increments the named counter by n.
func (c *Collector) Add(name string, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += n
}

// Get returns the current value of the named counter.
func (c *Collector) Get(name string) int64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() map[string]int64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}

// Reset clears all counters.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]int64)
}

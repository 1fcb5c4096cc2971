package rules

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// parsed is what the cache stores per raw condition string. Parse failures
// are cached alongside successes.
type parsed struct {
	cond Condition
	err  error
}

// ConditionCache memoizes ParseCondition keyed by the raw string
type ConditionCache struct {
	cache *ristretto.Cache[string, parsed]
}

// NewConditionCache creates a cache holding up to maxEntries parsed conditions.
// Every entry costs 1, so MaxCost is an entry count.
func NewConditionCache(maxEntries int64) (*ConditionCache, error) {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, parsed]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create condition cache: %w", err)
	}
	return &ConditionCache{cache: cache}, nil
}

// Parse returns the cached parse of raw. hit reports whether the entry
// was already cached.
func (c *ConditionCache) Parse(raw string) (cond Condition, hit bool, err error) {
	if entry, ok := c.cache.Get(raw); ok {
		return entry.cond, true, entry.err
	}

	cond, err = ParseCondition(raw)
	c.cache.Set(raw, parsed{cond: cond, err: err}, 1)
	return cond, false, err
}

// Wait blocks until buffered writes are applied
func (c *ConditionCache) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines
func (c *ConditionCache) Close() {
	c.cache.Close()
}

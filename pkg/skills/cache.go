package skills

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultCacheSize bounds the number of cached results
	DefaultCacheSize = 256
	// DefaultCacheTTL is how long a cached result may be reused
	DefaultCacheTTL = 10 * time.Minute
)

// ResultCache stores execution results keyed by skill name and input hash.
// Entries are evicted least-recently-used once the capacity is reached, and
// expire after the TTL. It is safe for concurrent use.
type ResultCache struct {
	lru    *expirable.LRU[string, skilltypes.Values]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a cache; size <= 0 and ttl <= 0 fall back to defaults
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, skilltypes.Values](size, nil, ttl),
	}
}

// CacheKey derives the deterministic key for a skill invocation. Map key
// order does not affect the hash.
func CacheKey(skillName string, inputs skilltypes.Values) (string, error) {
	hash, err := hashstructure.Hash(inputs, hashstructure.FormatV2, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash inputs")
	}
	return fmt.Sprintf("%s:%016x", skillName, hash), nil
}

// Get returns a copy of the cached result for key
func (c *ResultCache) Get(key string) (skilltypes.Values, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return copyValues(v), true
}

// Put stores a copy of the result under key
func (c *ResultCache) Put(key string, result skilltypes.Values) {
	c.lru.Add(key, copyValues(result))
}

// Len returns the number of live entries
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Clear drops every entry
func (c *ResultCache) Clear() {
	c.lru.Purge()
}

// Hits returns the number of cache hits since creation
func (c *ResultCache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the number of cache misses since creation
func (c *ResultCache) Misses() int64 {
	return c.misses.Load()
}

func copyValues(v skilltypes.Values) skilltypes.Values {
	if v == nil {
		return nil
	}
	out := make(skilltypes.Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

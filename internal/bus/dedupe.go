package bus

import (
	"sync"
	"time"
)

// DedupeCache remembers recently seen message keys so webhook retries and
// double-delivered updates don't trigger duplicate processing.
// Entries expire after a TTL; the map is capped to bound memory.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	entries map[string]time.Time
}

// NewDedupeCache creates a cache with the given entry TTL and size cap.
func NewDedupeCache(ttl time.Duration, max int) *DedupeCache {
	return &DedupeCache{
		ttl:     ttl,
		max:     max,
		entries: make(map[string]time.Time),
	}
}

// IsDuplicate reports whether key was seen within the TTL, recording it
// either way.
func (c *DedupeCache) IsDuplicate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if seen, ok := c.entries[key]; ok && now.Sub(seen) < c.ttl {
		return true
	}

	// Prune expired entries when approaching the cap.
	if len(c.entries) >= c.max {
		for k, t := range c.entries {
			if now.Sub(t) >= c.ttl {
				delete(c.entries, k)
			}
		}
		// Hard eviction if still at cap.
		for len(c.entries) >= c.max {
			for k := range c.entries {
				delete(c.entries, k)
				break
			}
		}
	}

	c.entries[key] = now
	return false
}

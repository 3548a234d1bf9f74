package relpool

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// connStringCache holds built connection strings with a sliding TTL (§4.2):
// a hit within ttl of the last build is returned as-is; a miss or expiry
// rebuilds and resets the window. ttl<=0 disables caching — every call
// rebuilds.
type connStringCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newConnStringCache(ttl time.Duration) *connStringCache {
	return &connStringCache{ttl: ttl, entries: map[string]cacheEntry{}}
}

func (c *connStringCache) getOrBuild(key string, build func() string) string {
	if c.ttl <= 0 {
		return build()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		return e.value
	}

	v := build()
	c.entries[key] = cacheEntry{value: v, expiresAt: now.Add(c.ttl)}
	return v
}

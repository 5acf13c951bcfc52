package universe

import (
	"sync"
	"time"
)

// ResolutionCache caches identifier resolutions for the duration of an
// import run so repeated identifiers don't trigger repeated provider
// probes. Injectable so tests control its contents deterministically.
type ResolutionCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value   string
	expires time.Time
}

// NewResolutionCache creates a cache with the given TTL. A zero TTL
// means entries never expire (per-run caches are simply dropped with
// the run).
func NewResolutionCache(ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get returns the cached resolution for a key
func (c *ResolutionCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && time.Now().After(e.expires) {
		return "", false
	}
	return e.value, true
}

// Put stores a resolution
func (c *ResolutionCache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expires: time.Now().Add(c.ttl)}
}

// Invalidate drops a single entry
func (c *ResolutionCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops all entries
func (c *ResolutionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

package dedup

import (
	"sync"
	"time"
)

// Cache is a small TTL cache of recent alert times by signal type. It is
// passed into the Filter explicitly so tests can control its lifetime; there
// is no process-wide state.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	alertedAt time.Time
	expires   time.Time
}

// NewCache creates a cache with the given TTL. A non-positive TTL disables
// caching: Get always misses.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached alert time for a signal type.
func (c *Cache) Get(sigType string, now time.Time) (time.Time, bool) {
	if c.ttl <= 0 {
		return time.Time{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sigType]
	if !ok || now.After(e.expires) {
		delete(c.entries, sigType)
		return time.Time{}, false
	}
	return e.alertedAt, true
}

// Set records the alert time for a signal type.
func (c *Cache) Set(sigType string, alertedAt, now time.Time) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sigType] = cacheEntry{
		alertedAt: alertedAt,
		expires:   now.Add(c.ttl),
	}
}

// Forget drops the entry for a signal type.
func (c *Cache) Forget(sigType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sigType)
}

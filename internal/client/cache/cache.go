// Package cache keeps authorised server responses for a short time so
// repeated reads of the same resource skip the network.
package cache

import (
	"sync"
	"time"
)

const DefaultTTL = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-memory TTL cache keyed by request path. It is safe for
// concurrent use. Purge must be called whenever the authenticated user
// changes.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// New returns a cache whose entries live for ttl. A non-positive ttl
// selects DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

// Get returns a copy of the value stored under key if it has not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: append([]byte(nil), value...), expiresAt: c.now().Add(c.ttl)}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len reports the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

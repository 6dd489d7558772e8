package cluster

import (
	"sync"
	"time"
)

// DefaultCacheTTL is the sliding expiration applied when none is given.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry[T any] struct {
	val     T
	expires time.Time
}

// Cache is a sliding-TTL cache. Entries are replaced whole, never
// partially updated, and expire after ttl of inactivity.
type Cache[T any] struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]cacheEntry[T]
}

// NewCache builds a cache with the given sliding TTL; ttl <= 0 selects
// DefaultCacheTTL.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache[T]{ttl: ttl, m: make(map[string]cacheEntry[T])}
}

// Get returns the live entry for key, sliding its expiration forward.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.m, key)
		var zero T
		return zero, false
	}
	e.expires = time.Now().Add(c.ttl)
	c.m[key] = e
	return e.val, true
}

// Add stores the value only if no live entry exists, reporting whether
// it stored.
func (c *Cache[T]) Add(key string, val T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.m[key]; ok && time.Now().Before(e.expires) {
		return false
	}
	c.m[key] = cacheEntry[T]{val: val, expires: time.Now().Add(c.ttl)}
	return true
}

// Set unconditionally overwrites the entry for key.
func (c *Cache[T]) Set(key string, val T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = cacheEntry[T]{val: val, expires: time.Now().Add(c.ttl)}
}

// Remove drops the entry for key.
func (c *Cache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Purge drops every expired entry and reports how many remain.
func (c *Cache[T]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.m {
		if now.After(e.expires) {
			delete(c.m, k)
		}
	}
	return len(c.m)
}

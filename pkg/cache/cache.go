package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	value      T
	expiration time.Time
}

// Cache is a simple thread-safe TTL cache for storing values in-memory.
// It is parameterised on value type so it can hold fetched order sets,
// summaries, or anything else with a bounded shelf life.
type Cache[T any] struct {
	mu   sync.RWMutex
	data map[string]item[T]
	ttl  time.Duration
}

// New creates a new TTL-based in-memory cache.
func New[T any](defaultTTL time.Duration) *Cache[T] {
	return &Cache[T]{
		data: make(map[string]item[T]),
		ttl:  defaultTTL,
	}
}

// Get returns a cached value if present and not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	it, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if time.Now().After(it.expiration) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return it.value, true
}

// Put inserts or overwrites a cache entry with the default TTL.
func (c *Cache[T]) Put(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = item[T]{
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}
}

// Invalidate removes a single entry.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Purge drops every entry.
func (c *Cache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]item[T])
}

// StartCleaner periodically evicts expired entries until stop is closed.
func (c *Cache[T]) StartCleaner(freq time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(freq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, it := range c.data {
				if now.After(it.expiration) {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		case <-stop:
			return
		}
	}
}

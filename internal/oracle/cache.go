package oracle

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cache holds one value with a freshness window. A stale value is still
// returned by Last so callers can fall back to it.
type Cache[T any] struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	ttl       time.Duration
	value     T
	fetchedAt time.Time
	ok        bool
}

// NewCache returns an empty cache.
func NewCache[T any](clock clockwork.Clock, ttl time.Duration) *Cache[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache[T]{clock: clock, ttl: ttl}
}

// Fresh returns the value if it was set within the TTL.
func (c *Cache[T]) Fresh() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ok || c.clock.Since(c.fetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.value, true
}

// Last returns the most recent value regardless of age.
func (c *Cache[T]) Last() (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.fetchedAt, c.ok
}

// Set stores v as fetched now.
func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.fetchedAt = c.clock.Now()
	c.ok = true
}

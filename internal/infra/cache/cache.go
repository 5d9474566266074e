// Package cache provides an in-memory TTL store. The checkout uses it as the
// registry of live sessions: entries expire after a period of inactivity and
// an expire hook lets the owner release whatever the entry holds.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu       sync.RWMutex
	items    map[string]entry[T]
	ttl      time.Duration
	sliding  bool
	onExpire func(key string, value T)

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures an InMemory cache.
type Option[T any] func(*InMemory[T])

// WithSlidingExpiry makes every successful Get push the expiry forward by the TTL.
func WithSlidingExpiry[T any]() Option[T] {
	return func(c *InMemory[T]) { c.sliding = true }
}

// WithExpireHook registers fn to run, outside the cache lock, for every entry
// removed by expiry. Delete and Take do not trigger it.
func WithExpireHook[T any](fn func(key string, value T)) Option[T] {
	return func(c *InMemory[T]) { c.onExpire = fn }
}

// New creates a new in-memory cache with the given TTL.
func New[T any](ttl time.Duration, opts ...Option[T]) *InMemory[T] {
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	// Background cleanup goroutine
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	if c.sliding {
		c.mu.Lock()
		defer c.mu.Unlock()
	} else {
		c.mu.RLock()
		defer c.mu.RUnlock()
	}

	e, ok := c.items[key]
	now := time.Now()
	if !ok || now.After(e.expiresAt) {
		var zero T
		return zero, false
	}
	if c.sliding {
		e.expiresAt = now.Add(c.ttl)
		c.items[key] = e
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Take removes a value and returns it, expired or not.
func (c *InMemory[T]) Take(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	delete(c.items, key)
	return e.value, ok
}

// Drain removes every entry and returns them, expired or not. The expire
// hook is not called.
func (c *InMemory[T]) Drain() map[string]T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]T, len(c.items))
	for k, e := range c.items {
		out[k] = e.value
	}
	c.items = make(map[string]entry[T])
	return out
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine. Remaining entries are left untouched.
func (c *InMemory[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	interval := c.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemory[T]) sweep() {
	type expired struct {
		key   string
		value T
	}
	var gone []expired

	c.mu.Lock()
	now := time.Now()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
			gone = append(gone, expired{k, v.value})
		}
	}
	c.mu.Unlock()

	if c.onExpire == nil {
		return
	}
	for _, g := range gone {
		c.onExpire(g.key, g.value)
	}
}

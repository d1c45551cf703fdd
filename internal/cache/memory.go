// SPDX-License-Identifier: MIT

package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	ttl        time.Duration
	expiration time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiration)
}

// Memory is a thread-safe in-memory cache with per-entry TTL.
// Expired entries are removed by a background janitor; OnEvict, if set,
// runs for each of them outside the lock.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
	stats   Stats
	now     func() time.Time

	onEvict func(key string, value V)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemory creates a cache. A positive cleanupInterval starts the janitor,
// which must be stopped with Stop.
func NewMemory[V any](cleanupInterval time.Duration) *Memory[V] {
	c := &Memory[V]{
		entries: make(map[string]*entry[V]),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

// OnEvict registers fn for entries removed by expiry or Delete.
func (c *Memory[V]) OnEvict(fn func(key string, value V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value.
func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key, false)
}

// Touch retrieves a value and extends its lifetime by its original TTL.
func (c *Memory[V]) Touch(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key, true)
}

func (c *Memory[V]) getLocked(key string, touch bool) (V, bool) {
	var zero V
	e, found := c.entries[key]
	if !found || e.expired(c.now()) {
		c.stats.Misses++
		return zero, false
	}
	if touch {
		e.expiration = c.now().Add(e.ttl)
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores a value.
func (c *Memory[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry[V]{
		value:      value,
		ttl:        ttl,
		expiration: c.now().Add(ttl),
	}
	c.stats.Sets++
}

// Delete removes a value, invoking OnEvict if present.
func (c *Memory[V]) Delete(key string) {
	c.mu.Lock()
	e, found := c.entries[key]
	delete(c.entries, key)
	fn := c.onEvict
	c.mu.Unlock()

	if found && fn != nil {
		fn(key, e.value)
	}
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *Memory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Memory[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// DeleteExpired removes expired entries and returns how many were removed.
func (c *Memory[V]) DeleteExpired() int {
	type evicted struct {
		key   string
		value V
	}

	c.mu.Lock()
	now := c.now()
	var gone []evicted
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			gone = append(gone, evicted{key, e.value})
		}
	}
	c.stats.Evictions += int64(len(gone))
	fn := c.onEvict
	c.mu.Unlock()

	if fn != nil {
		for _, g := range gone {
			fn(g.key, g.value)
		}
	}
	return len(gone)
}

// Drain removes every entry, invoking OnEvict for each.
func (c *Memory[V]) Drain() {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]*entry[V])
	fn := c.onEvict
	c.mu.Unlock()

	if fn != nil {
		for k, e := range old {
			fn(k, e.value)
		}
	}
}

// Stop stops the janitor and waits for it to exit.
func (c *Memory[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Memory[V]) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

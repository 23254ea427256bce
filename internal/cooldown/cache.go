// Package cooldown holds the per-identifier scan cooldown as a bounded TTL cache.
package cooldown

import (
	"sync"
	"time"
)

// Clock abstracts time so the window can be driven from tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Cache remembers the last accepted scan per identifier. Entries expire once
// the window has elapsed; expired entries are swept lazily.
type Cache struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	clock      Clock
	entries    map[string]time.Time
}

// New creates a cache. maxEntries <= 0 means unbounded.
func New(window time.Duration, maxEntries int, clock Clock) *Cache {
	if clock == nil {
		clock = SystemClock()
	}
	return &Cache{
		window:     window,
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]time.Time),
	}
}

// Acquire checks and records in one step. It returns ok=false and the
// remaining wait when key was accepted within the window; otherwise it stores
// the new acceptance time before returning ok=true.
func (c *Cache) Acquire(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if last, found := c.entries[key]; found {
		if elapsed := now.Sub(last); elapsed < c.window {
			return c.window - elapsed, false
		}
	}
	c.entries[key] = now
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.evictLocked(now, key)
	}
	return 0, true
}

// Remaining reports how long key stays blocked, without recording anything.
func (c *Cache) Remaining(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, found := c.entries[key]
	if !found {
		return 0
	}
	if elapsed := c.clock.Now().Sub(last); elapsed < c.window {
		return c.window - elapsed
	}
	return 0
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.clock.Now())
}

// Len returns the number of tracked identifiers, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset empties the cache, as on a new session.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]time.Time)
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for k, at := range c.entries {
		if now.Sub(at) >= c.window {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// evictLocked makes room after an insert. Expired entries go first, then the
// oldest live ones; keep is never evicted.
func (c *Cache) evictLocked(now time.Time, keep string) {
	c.sweepLocked(now)
	for len(c.entries) > c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, at := range c.entries {
			if k == keep {
				continue
			}
			if oldestKey == "" || at.Before(oldest) {
				oldestKey, oldest = k, at
			}
		}
		if oldestKey == "" {
			return
		}
		delete(c.entries, oldestKey)
	}
}

package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the freshness window applied to every entry.
const DefaultTTL = 5 * time.Minute

type entry struct {
	value    any
	storedAt time.Time
}

// TimedCache keeps values for a fixed TTL. Stale entries are dropped when
// they are next read, or by Sweep.
type TimedCache struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

type Option func(*TimedCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *TimedCache) {
		c.now = now
	}
}

// NewTimedCache returns an empty cache. A ttl <= 0 disables caching: every
// Get misses.
func NewTimedCache(ttl time.Duration, opts ...Option) *TimedCache {
	c := &TimedCache{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TimedCache) TTL() time.Duration {
	return c.ttl
}

func (c *TimedCache) Get(ctx context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if !c.fresh(e, c.now()) {
		delete(c.items, key)
		return nil, false
	}

	return e.value, true
}

func (c *TimedCache) Set(ctx context.Context, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry{
		value:    value,
		storedAt: c.now(),
	}
}

// Len counts stored entries, stale ones included.
func (c *TimedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Sweep drops every stale entry and returns how many were removed.
func (c *TimedCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.items {
		if !c.fresh(e, now) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *TimedCache) fresh(e entry, now time.Time) bool {
	return now.Sub(e.storedAt) < c.ttl
}

// Package cache is a small in-process TTL cache with load deduplication.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type Options struct {
	TTL        time.Duration
	MaxEntries int
}

// Hooks observe cache traffic, typically to feed Prometheus counters.
type Hooks struct {
	OnHit  func()
	OnMiss func()
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache holds values of type V keyed by string. Failed loads are not stored.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	order []string
	opts  Options
	hooks Hooks
	sf    singleflight.Group
	now   func() time.Time
}

func New[V any](opts Options, hooks Hooks) *Cache[V] {
	return &Cache[V]{
		items: make(map[string]entry[V]),
		opts:  opts,
		hooks: hooks,
		now:   time.Now,
	}
}

// Get returns the cached value for key or calls load once, however many
// callers are waiting on the same key.
func (c *Cache[V]) Get(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Peek(key); ok {
		if c.hooks.OnHit != nil {
			c.hooks.OnHit()
		}
		return v, nil
	}
	if c.hooks.OnMiss != nil {
		c.hooks.OnMiss()
	}

	res, err, _ := c.sf.Do(key, func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Peek returns an unexpired value without loading.
func (c *Cache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || !c.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[key]; !exists {
		c.order = append(c.order, key)
	}
	c.items[key] = entry[V]{value: v, expiresAt: c.now().Add(c.opts.TTL)}
	c.evict()
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.removeFromOrder(key)
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[V]) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evict drops the oldest keys once MaxEntries is exceeded. Caller holds mu.
func (c *Cache[V]) evict() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.items) > c.opts.MaxEntries && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.items, victim)
	}
}

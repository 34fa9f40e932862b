package memory

import (
	"context"
	"sync"
	"time"
)

// Cache is a process-local byte cache with per-key expiry.
type Cache struct {
	clock func() time.Time

	mu    sync.Mutex
	items map[string]cacheItem
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func NewCache() *Cache {
	return &Cache{clock: time.Now, items: make(map[string]cacheItem)}
}

// NewCacheWithClock is test-only for deterministic expiry.
func NewCacheWithClock(now func() time.Time) *Cache {
	c := NewCache()
	c.clock = now
	return c
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && !item.expiresAt.After(c.clock()) {
		delete(c.items, key)
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := cacheItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.clock().Add(ttl)
	}
	c.items[key] = item
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

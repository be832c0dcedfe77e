package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/cerberus-auth/cerberus/ports"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is an in-memory implementation of the Cache port. Entries
// expire lazily on read and via a best-effort cleanup goroutine per write.
type MemoryCache struct {
	entries map[string]entry
	mu      sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
	}
}

// Get retrieves a value by key. A missing or expired key is not an error.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return "", nil
	}
	return e.value, nil
}

// Set stores a value under key with the given TTL
func (c *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = e

	if ttl > 0 {
		expiresAt := e.expiresAt
		go func() {
			time.Sleep(ttl)

			c.mu.Lock()
			defer c.mu.Unlock()

			// Only delete if the entry hasn't been replaced since
			if stored, exists := c.entries[key]; exists && !stored.expiresAt.After(expiresAt) {
				delete(c.entries, key)
			}
		}()
	}

	return nil
}

// Delete removes a key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// GetMany returns the values of every key matching the glob pattern
func (c *MemoryCache) GetMany(ctx context.Context, pattern string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var values []string
	for key, e := range c.entries {
		if e.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			values = append(values, e.value)
		}
	}
	return values, nil
}

// DeleteMany removes every key matching the glob pattern
func (c *MemoryCache) DeleteMany(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

var _ ports.Cache = (*MemoryCache)(nil)

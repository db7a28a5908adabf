package store

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/catalogd/internal/model"
)

// OptionCache remembers the last good network option list per
// (dimension, ancestor signature) for a limited time
type OptionCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	options   []model.Option
	expiresAt time.Time
}

// NewOptionCache creates a cache; a non-positive ttl disables it
func NewOptionCache(ttl time.Duration) *OptionCache {
	return &OptionCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a cached list if present and not expired
func (c *OptionCache) Get(d model.Dimension, signature string) ([]model.Option, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[cacheKey(d, signature)]
	if !exists || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.options, true
}

// Put stores a list; empty lists are never cached
func (c *OptionCache) Put(d model.Dimension, signature string, options []model.Option) {
	if c.ttl <= 0 || len(options) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(d, signature)] = &cacheEntry{
		options:   append([]model.Option(nil), options...),
		expiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes one entry
func (c *OptionCache) Delete(d model.Dimension, signature string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(d, signature))
}

// Size returns the number of entries in cache
func (c *OptionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were dropped
func (c *OptionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// RunCleanup sweeps periodically until ctx is done
func (c *OptionCache) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func cacheKey(d model.Dimension, signature string) string {
	return string(d) + "|" + signature
}

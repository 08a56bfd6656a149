// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package identity provides the process-local identity cache that keeps
// the hot request path off the user store.
package identity

import (
	"sync"
	"time"

	"github.com/assesshub/platform/internal/models"
)

// DefaultTTL bounds how long a resolved identity is trusted without
// re-checking the store. It is also the upper bound on how long a
// deactivated account can keep authenticating.
const DefaultTTL = 60 * time.Second

type entry struct {
	user       *models.User
	insertedAt time.Time
}

// Cache is a TTL-bounded map from user ID to resolved identity. Safe for
// concurrent use. Eviction is passive: stale entries are dropped when read.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a Cache. A non-positive ttl falls back to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[int64]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached identity for id, or false when absent or older
// than the TTL. Staleness is a miss, never stale data.
func (c *Cache) Get(id int64) (*models.User, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.insertedAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := c.entries[id]; ok && c.now().Sub(cur.insertedAt) > c.ttl {
			delete(c.entries, id)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.user, true
}

// Set stores the identity for id, restarting its TTL window.
func (c *Cache) Set(id int64, user *models.User) {
	c.mu.Lock()
	c.entries[id] = entry{user: user, insertedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the cached identity for id, if any.
func (c *Cache) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len returns the number of entries currently held, including ones that
// have expired but not yet been dropped.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Package cache implements the in-memory existence cache, the local disk
// cache, and the smart cache retention policy (spec §4.3, §4.5, §4.6).
package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ExistenceEntry memoizes a remote-store existence check.
type ExistenceEntry struct {
	Exists    bool
	Timestamp time.Time
}

func (e ExistenceEntry) expired(ttl time.Duration) bool {
	return time.Since(e.Timestamp) > ttl
}

// ExistenceCache is a short-TTL positive/negative memoization of
// object-store lookups, capacity-bound with oldest-first eviction. A single
// mutex guards it; every operation is O(1) or O(n) only during the rare
// capacity-triggered cleanup, matching the bound the middleware rate
// limiter uses for its own IP map.
type ExistenceCache struct {
	mu          sync.Mutex
	entries     map[string]ExistenceEntry
	capacity    int
	positiveTTL time.Duration
	negativeTTL time.Duration
}

// NewExistenceCache builds a cache with the given capacity bound and
// positive/negative TTLs. A background goroutine prunes expired entries
// every 10 minutes, per spec §4.3.
func NewExistenceCache(capacity int, positiveTTL, negativeTTL time.Duration) *ExistenceCache {
	c := &ExistenceCache{
		entries:     make(map[string]ExistenceEntry),
		capacity:    capacity,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
	go c.cleanupLoop()
	return c
}

func (c *ExistenceCache) ttlFor(exists bool) time.Duration {
	if exists {
		return c.positiveTTL
	}
	return c.negativeTTL
}

// Get returns the cached existence value for key, or ok=false if absent or
// expired. An expired entry is evicted as a side effect.
func (c *ExistenceCache) Get(key string) (exists bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found := c.entries[key]
	if !found {
		return false, false
	}
	if entry.expired(c.ttlFor(entry.Exists)) {
		delete(c.entries, key)
		return false, false
	}
	return entry.Exists, true
}

// Set records key's existence. If the cache is at capacity, expired entries
// are dropped first; if still at or above 80% of capacity, the oldest 20%
// by timestamp are evicted.
func (c *ExistenceCache) Set(key string, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}

	c.entries[key] = ExistenceEntry{Exists: exists, Timestamp: time.Now()}
}

// Delete removes a single key.
func (c *ExistenceCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DeleteMatching removes every entry whose key satisfies contains; used by
// Invalidate to clear every existence entry referencing an original.
func (c *ExistenceCache) DeleteMatching(contains func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if contains(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Keys returns a snapshot of every tracked key.
func (c *ExistenceCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// evictLocked must be called with c.mu held. It drops expired entries, then,
// if still at or above 80% of capacity, drops the oldest 20% by timestamp.
func (c *ExistenceCache) evictLocked() {
	for k, entry := range c.entries {
		if entry.expired(c.ttlFor(entry.Exists)) {
			delete(c.entries, k)
		}
	}

	if len(c.entries) < (c.capacity*80)/100 {
		return
	}

	type kt struct {
		key string
		ts  time.Time
	}
	all := make([]kt, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, kt{k, e.Timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	toEvict := len(all) / 5
	for i := 0; i < toEvict; i++ {
		delete(c.entries, all[i].key)
	}
}

func (c *ExistenceCache) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		before := len(c.entries)
		for k, entry := range c.entries {
			if entry.expired(c.ttlFor(entry.Exists)) {
				delete(c.entries, k)
			}
		}
		after := len(c.entries)
		c.mu.Unlock()
		if before != after {
			slog.Debug("existence cache cleanup", "removed", before-after, "remaining", after)
		}
	}
}

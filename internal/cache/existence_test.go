package cache

import (
	"testing"
	"time"
)

func TestExistenceCacheSetAndGet(t *testing.T) {
	c := NewExistenceCache(100, time.Minute, time.Minute)

	c.Set("a", true)
	exists, ok := c.Get("a")
	if !ok || !exists {
		t.Errorf("Get(a) = (%v, %v), want (true, true)", exists, ok)
	}

	_, ok = c.Get("missing")
	if ok {
		t.Error("expected Get on an absent key to report ok=false")
	}
}

func TestExistenceCacheExpiresPositiveEntries(t *testing.T) {
	c := NewExistenceCache(100, time.Millisecond, time.Hour)
	c.Set("a", true)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("a")
	if ok {
		t.Error("expected a positive entry past its TTL to be treated as expired")
	}
}

func TestExistenceCacheNegativeAndPositiveTTLsAreIndependent(t *testing.T) {
	c := NewExistenceCache(100, time.Hour, time.Millisecond)
	c.Set("miss", false)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("miss"); ok {
		t.Error("expected a negative entry past its negative TTL to be expired")
	}

	c.Set("hit", true)
	if _, ok := c.Get("hit"); !ok {
		t.Error("expected a positive entry within its (much longer) positive TTL to still be cached")
	}
}

func TestExistenceCacheDelete(t *testing.T) {
	c := NewExistenceCache(100, time.Minute, time.Minute)
	c.Set("a", true)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected Delete to remove the entry")
	}
}

func TestExistenceCacheDeleteMatching(t *testing.T) {
	c := NewExistenceCache(100, time.Minute, time.Minute)
	c.Set("cache/photos/a.jpg", true)
	c.Set("cache/photos/b.jpg", true)
	c.Set("cache/videos/a.mp4", true)

	removed := c.DeleteMatching(func(key string) bool {
		return key == "cache/photos/a.jpg" || key == "cache/photos/b.jpg"
	})
	if removed != 2 {
		t.Errorf("DeleteMatching removed %d entries, want 2", removed)
	}
	if _, ok := c.Get("cache/videos/a.mp4"); !ok {
		t.Error("expected the non-matching entry to survive")
	}
}

func TestExistenceCacheEvictsAtCapacity(t *testing.T) {
	c := NewExistenceCache(10, time.Hour, time.Hour)
	for i := 0; i < 12; i++ {
		c.Set(string(rune('a'+i)), true)
	}
	if len(c.Keys()) >= 12 {
		t.Errorf("expected capacity-triggered eviction to keep the cache under 12 entries, got %d", len(c.Keys()))
	}
}

package cache

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// accessRecord tracks how often and how recently an original has been
// requested, per spec §3's Access Record.
type accessRecord struct {
	count      int
	lastAccess time.Time
}

// Policy decides whether a produced artifact is worth keeping on local disk
// and when to evict, per spec §4.6. It owns the access-record map; the disk
// cache it evicts from is injected so ownership of bytes stays with DiskCache.
type Policy struct {
	mu      sync.Mutex
	access  map[string]*accessRecord
	disk    *DiskCache
	ceiling int64
}

// NewPolicy builds a Policy evicting from disk once TrackedBytes exceeds
// 80% of ceiling.
func NewPolicy(disk *DiskCache, ceilingBytes int64) *Policy {
	return &Policy{
		access:  make(map[string]*accessRecord),
		disk:    disk,
		ceiling: ceilingBytes,
	}
}

// RecordAccess registers a request for originalPath, used both to decide
// retention and to drive eviction ordering.
func (p *Policy) RecordAccess(originalPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.access[originalPath]
	if !ok {
		rec = &accessRecord{}
		p.access[originalPath] = rec
	}
	if time.Since(rec.lastAccess) > time.Hour {
		rec.count = 0
	}
	rec.count++
	rec.lastAccess = time.Now()
}

// ShouldKeepLocal reports whether a freshly produced artifact for
// originalPath should be written to the local disk cache: true iff the
// original has been requested more than once in the last hour.
func (p *Policy) ShouldKeepLocal(originalPath string, _ int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.access[originalPath]
	if !ok {
		return false
	}
	return rec.count > 1 && time.Since(rec.lastAccess) <= time.Hour
}

// ShouldCleanupCache reports whether total tracked local bytes exceed 80%
// of the configured ceiling.
func (p *Policy) ShouldCleanupCache() bool {
	return p.disk.TrackedBytes() > (p.ceiling*80)/100
}

// MaybeCleanup invokes Cleanup probabilistically (1% per call), amortizing
// the cost of the eviction scan without a dedicated timer, per spec §4.6.
func (p *Policy) MaybeCleanup() {
	if rand.Intn(100) != 0 {
		return
	}
	if p.ShouldCleanupCache() {
		p.Cleanup()
	}
}

// Cleanup evicts the 20% of tracked originals with the oldest lastAccess,
// removing their matching cache files from disk.
func (p *Policy) Cleanup() {
	p.mu.Lock()
	type kt struct {
		path string
		rec  *accessRecord
	}
	all := make([]kt, 0, len(p.access))
	for k, v := range p.access {
		all = append(all, kt{k, v})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].rec.lastAccess.Before(all[j].rec.lastAccess) })
	toEvict := len(all) / 5
	evicted := all[:toEvict]
	for _, e := range evicted {
		delete(p.access, e.path)
	}
	p.mu.Unlock()

	for _, e := range evicted {
		stem := safeStemLocal(e.path)
		files, _ := filepath.Glob(filepath.Join(p.disk.Root(), "*"+stem+"*"))
		for _, f := range files {
			if info, err := os.Stat(f); err == nil {
				if os.Remove(f) == nil {
					p.disk.AdjustTrackedBytes(-info.Size())
				}
			}
		}
	}
}

func safeStemLocal(originalPath string) string {
	ext := filepath.Ext(originalPath)
	stem := originalPath[:len(originalPath)-len(ext)]
	replacer := func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}
	out := make([]rune, 0, len(stem))
	for _, r := range stem {
		out = append(out, replacer(r))
	}
	return string(out)
}

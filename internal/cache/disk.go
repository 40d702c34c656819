package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// DiskCache is the content-addressed local file cache described in spec
// §4.5: writes create parent directories, delete_matching scans by safe
// stem, and every write updates the in-memory byte counter the smart cache
// policy consults.
type DiskCache struct {
	root      string
	trackedSz int64 // atomic
}

// NewDiskCache returns a cache rooted at dir. The directory is created
// lazily on first write.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{root: dir}
}

func (d *DiskCache) path(name string) string {
	return filepath.Join(d.root, name)
}

// Exists reports whether a cache file is present.
func (d *DiskCache) Exists(name string) bool {
	_, err := os.Stat(d.path(name))
	return err == nil
}

// Read returns the bytes stored under name.
func (d *DiskCache) Read(name string) ([]byte, error) {
	return os.ReadFile(d.path(name))
}

// Write persists data under name, creating parent directories as needed,
// and accumulates the tracked byte counter.
func (d *DiskCache) Write(name string, data []byte) error {
	full := d.path(name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return err
	}
	atomic.AddInt64(&d.trackedSz, int64(len(data)))
	return nil
}

// DeleteMatching removes every cache file whose name contains the original's
// safe-encoded stem, returning the count removed.
func (d *DiskCache) DeleteMatching(stem string) (int, error) {
	entries, err := os.ReadDir(d.root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.Contains(entry.Name(), stem) {
			full := d.path(entry.Name())
			if info, statErr := os.Stat(full); statErr == nil {
				atomic.AddInt64(&d.trackedSz, -info.Size())
			}
			if err := os.Remove(full); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// TrackedBytes returns the accumulated byte counter used by the smart cache
// policy. It is an estimate (writes add, evictions subtract) rather than a
// live directory walk, matching the spec's "in-memory byte counter" wording.
func (d *DiskCache) TrackedBytes() int64 {
	return atomic.LoadInt64(&d.trackedSz)
}

// AdjustTrackedBytes is used by the eviction policy after it removes files
// directly, to keep the counter consistent.
func (d *DiskCache) AdjustTrackedBytes(delta int64) {
	atomic.AddInt64(&d.trackedSz, delta)
}

// Root exposes the cache directory for components (the policy's eviction
// walk) that need direct filesystem access.
func (d *DiskCache) Root() string {
	return d.root
}

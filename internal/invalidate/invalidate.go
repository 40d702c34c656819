// Package invalidate implements cache invalidation and cascading asset
// deletion (spec §4.14): clearing every cache tier's entries for a given
// original, and — for full deletion — removing the original itself and its
// queued jobs too.
package invalidate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mediaforge/internal/cache"
	"mediaforge/internal/fingerprint"
	"mediaforge/internal/jobs"
	"mediaforge/internal/objectstore"
)

// Report is the per-tier outcome of an invalidation or delete, tolerant of
// partial failure: each tier's count reflects what succeeded, and Errors
// collects tier-scoped failures without aborting the remaining tiers.
type Report struct {
	ExistenceEntriesCleared int      `json:"existence_entries_cleared"`
	LocalFilesDeleted       int      `json:"local_files_deleted"`
	RemoteObjectsDeleted    int      `json:"remote_objects_deleted"`
	OriginalDeleted         bool     `json:"original_deleted,omitempty"`
	JobsDeleted             int64    `json:"jobs_deleted,omitempty"`
	Errors                  []string `json:"errors,omitempty"`
}

func (r *Report) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Invalidator clears every derived-artifact cache tier for an original path
// without touching the original itself.
type Invalidator struct {
	Existence *cache.ExistenceCache
	Disk      *cache.DiskCache
	Remote    objectstore.Store
}

// NewInvalidator builds an Invalidator over the three cache tiers.
func NewInvalidator(existence *cache.ExistenceCache, disk *cache.DiskCache, remote objectstore.Store) *Invalidator {
	return &Invalidator{Existence: existence, Disk: disk, Remote: remote}
}

// InvalidatePath clears every cache entry derived from originalPath: local
// disk files sharing its fingerprint stem, remote objects tagged with its
// x-original-path metadata, and in-memory existence cache entries whose key
// contains the path. Partial tier failures are recorded, not fatal.
func (inv *Invalidator) InvalidatePath(ctx context.Context, originalPath string) (*Report, error) {
	report := &Report{}
	stem := fingerprint.SafeStem(originalPath)

	n, err := inv.Disk.DeleteMatching(stem)
	if err != nil {
		report.addError("local disk: %v", err)
	}
	report.LocalFilesDeleted = n

	remoteDeleted, err := inv.invalidateRemote(ctx, originalPath)
	if err != nil {
		report.addError("remote store: %v", err)
	}
	report.RemoteObjectsDeleted = remoteDeleted

	report.ExistenceEntriesCleared = inv.Existence.DeleteMatching(func(key string) bool {
		return strings.Contains(key, originalPath)
	})

	return report, nil
}

// invalidateRemote lists every object under the cache prefix, keeps the ones
// tagged with this original (via HeadMeta's x-original-path metadata), and
// batch-deletes them.
func (inv *Invalidator) invalidateRemote(ctx context.Context, originalPath string) (int, error) {
	entries, err := inv.Remote.List(ctx, "cache/")
	if err != nil {
		return 0, fmt.Errorf("list cache objects: %w", err)
	}

	var matched []string
	for _, entry := range entries {
		meta, err := inv.Remote.HeadMeta(ctx, entry.Key)
		if err != nil {
			slog.Warn("head object during invalidation failed", "key", entry.Key, "error", err)
			continue
		}
		if meta == nil {
			continue
		}
		if meta.Metadata["x-original-path"] == originalPath {
			matched = append(matched, entry.Key)
		}
	}

	if len(matched) == 0 {
		return 0, nil
	}
	return inv.Remote.DeleteMany(ctx, matched)
}

// AssetDeleter cascades a full delete: every derived cache entry, every
// queued or completed job, and the original itself.
type AssetDeleter struct {
	Invalidator *Invalidator
	Jobs        *jobs.Store
	Remote      objectstore.Store
}

// NewAssetDeleter builds an AssetDeleter over an Invalidator and the job
// store.
func NewAssetDeleter(invalidator *Invalidator, jobStore *jobs.Store, remote objectstore.Store) *AssetDeleter {
	return &AssetDeleter{Invalidator: invalidator, Jobs: jobStore, Remote: remote}
}

// DeleteAsset cascades: jobs referencing originalPath are removed first (so
// no worker claims them mid-delete), then every cache tier, then the
// original object itself. Each stage's failure is recorded in the Report
// rather than aborting the remaining stages.
func (d *AssetDeleter) DeleteAsset(ctx context.Context, originalPath string) (*Report, error) {
	deleted, jobErr := d.Jobs.DeleteByFilePath(ctx, originalPath)

	report, _ := d.Invalidator.InvalidatePath(ctx, originalPath)
	if jobErr != nil {
		report.addError("job queue: %v", jobErr)
	}
	report.JobsDeleted = deleted

	if err := d.Remote.Delete(ctx, originalPath); err != nil {
		report.addError("original object: %v", err)
	} else {
		report.OriginalDeleted = true
	}

	return report, nil
}

package cache

import "testing"

func TestPolicyShouldKeepLocalRequiresRepeatAccess(t *testing.T) {
	disk := NewDiskCache(t.TempDir())
	p := NewPolicy(disk, 1<<20)

	if p.ShouldKeepLocal("photos/a.jpg", 0) {
		t.Error("expected an original with no recorded access to not be kept local")
	}

	p.RecordAccess("photos/a.jpg")
	if p.ShouldKeepLocal("photos/a.jpg", 0) {
		t.Error("expected a single access to not qualify for local retention")
	}

	p.RecordAccess("photos/a.jpg")
	if !p.ShouldKeepLocal("photos/a.jpg", 0) {
		t.Error("expected a second access within the window to qualify for local retention")
	}
}

func TestPolicyShouldCleanupCacheComparesAgainstCeiling(t *testing.T) {
	disk := NewDiskCache(t.TempDir())
	p := NewPolicy(disk, 100)

	if p.ShouldCleanupCache() {
		t.Error("expected an empty disk cache to not need cleanup")
	}

	if err := disk.Write("big.jpg", make([]byte, 90)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !p.ShouldCleanupCache() {
		t.Error("expected tracked bytes above 80%% of the ceiling to need cleanup")
	}
}

func TestPolicyCleanupEvictsOldestAccessedOriginals(t *testing.T) {
	root := t.TempDir()
	disk := NewDiskCache(root)
	p := NewPolicy(disk, 1<<20)

	for i := 0; i < 5; i++ {
		name := string(rune('a' + i))
		if err := disk.Write(name+"stem.jpg", []byte("data")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		p.RecordAccess(name + "stem.jpg")
	}

	p.Cleanup()

	if len(p.access) != 4 {
		t.Errorf("expected Cleanup to evict 1 of 5 access records (20%%), got %d remaining", len(p.access))
	}
}

package invalidate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mediaforge/internal/cache"
	"mediaforge/internal/objectstore"
)

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

type fakeStore struct {
	objects map[string]fakeObject
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject)}
}

func (f *fakeStore) Head(_ context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("not found: %s", key)
	}
	return obj.data, nil
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	f.objects[key] = fakeObject{data: data, contentType: contentType, metadata: metadata}
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]objectstore.ListEntry, error) {
	var entries []objectstore.ListEntry
	for key, obj := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			entries = append(entries, objectstore.ListEntry{Key: key, Size: int64(len(obj.data))})
		}
	}
	return entries, nil
}

func (f *fakeStore) HeadMeta(_ context.Context, key string) (*objectstore.ObjectMeta, error) {
	obj, ok := f.objects[key]
	if !ok {
		return nil, nil
	}
	return &objectstore.ObjectMeta{Size: int64(len(obj.data)), Metadata: obj.metadata}, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) DeleteMany(_ context.Context, keys []string) (int, error) {
	n := 0
	for _, k := range keys {
		if _, ok := f.objects[k]; ok {
			delete(f.objects, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) PublicURL(key string) string { return "https://example.test/" + key }

func (f *fakeStore) PresignPut(context.Context, string, string, int64) (string, error) {
	return "", nil
}

func (f *fakeStore) MoveObject(_ context.Context, src, dst string) error {
	f.objects[dst] = f.objects[src]
	delete(f.objects, src)
	return nil
}

func TestInvalidatePathClearsAllThreeTiers(t *testing.T) {
	existence := cache.NewExistenceCache(100, time.Minute, time.Minute)
	disk := cache.NewDiskCache(t.TempDir())
	store := newFakeStore()

	existence.Set("cache/abc.jpg?photos/a.jpg", true)
	_ = disk.Write("photos_a-abc.jpg", []byte("thumb"))
	_ = store.Put(context.Background(), "cache/abc.jpg", []byte("remote"), "image/jpeg",
		map[string]string{"x-original-path": "photos/a.jpg"})
	_ = store.Put(context.Background(), "cache/unrelated.jpg", []byte("remote"), "image/jpeg",
		map[string]string{"x-original-path": "photos/b.jpg"})

	inv := NewInvalidator(existence, disk, store)
	report, err := inv.InvalidatePath(context.Background(), "photos/a.jpg")
	if err != nil {
		t.Fatalf("InvalidatePath: %v", err)
	}

	if report.LocalFilesDeleted != 1 {
		t.Errorf("LocalFilesDeleted = %d, want 1", report.LocalFilesDeleted)
	}
	if report.RemoteObjectsDeleted != 1 {
		t.Errorf("RemoteObjectsDeleted = %d, want 1", report.RemoteObjectsDeleted)
	}
	if report.ExistenceEntriesCleared != 1 {
		t.Errorf("ExistenceEntriesCleared = %d, want 1", report.ExistenceEntriesCleared)
	}
	if _, ok := store.objects["cache/unrelated.jpg"]; !ok {
		t.Error("expected the unrelated remote object to survive")
	}
}

func TestInvalidatePathToleratesNoMatches(t *testing.T) {
	existence := cache.NewExistenceCache(100, time.Minute, time.Minute)
	disk := cache.NewDiskCache(t.TempDir())
	store := newFakeStore()

	inv := NewInvalidator(existence, disk, store)
	report, err := inv.InvalidatePath(context.Background(), "photos/never-existed.jpg")
	if err != nil {
		t.Fatalf("InvalidatePath: %v", err)
	}
	if report.LocalFilesDeleted != 0 || report.RemoteObjectsDeleted != 0 || len(report.Errors) != 0 {
		t.Errorf("expected an empty, error-free report, got %+v", report)
	}
}

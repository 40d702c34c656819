package upload

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediaforge/internal/apperr"
	"mediaforge/internal/objectstore"
)

type fakeStore struct {
	existing map[string]bool
	puts     map[string][]byte
	headErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}, puts: map[string][]byte{}}
}

func (f *fakeStore) Head(_ context.Context, key string) (bool, error) {
	if f.headErr != nil {
		return false, f.headErr
	}
	return f.existing[key], nil
}
func (f *fakeStore) Get(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string, _ map[string]string) error {
	f.puts[key] = data
	f.existing[key] = true
	return nil
}
func (f *fakeStore) List(context.Context, string) ([]objectstore.ListEntry, error) { return nil, nil }
func (f *fakeStore) HeadMeta(context.Context, string) (*objectstore.ObjectMeta, error) {
	return nil, nil
}
func (f *fakeStore) Delete(context.Context, string) error            { return nil }
func (f *fakeStore) DeleteMany(context.Context, []string) (int, error) { return 0, nil }
func (f *fakeStore) PublicURL(key string) string                     { return key }
func (f *fakeStore) PresignPut(context.Context, string, string, int64) (string, error) {
	return "", nil
}
func (f *fakeStore) MoveObject(context.Context, string, string) error { return nil }

func buildMultipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm.File["files"][0]
}

func TestHandleFileUploadsAllowedImage(t *testing.T) {
	store := newFakeStore()
	u := NewUploader(store, nil, "uploads/")

	header := buildMultipartFile(t, "photo.jpg", []byte("fake jpeg bytes"))
	result, err := u.HandleFile(context.Background(), header)
	if err != nil {
		t.Fatalf("HandleFile: %v", err)
	}
	if result.Path != "uploads/photo.jpg" {
		t.Errorf("Path = %q, want %q", result.Path, "uploads/photo.jpg")
	}
	if _, ok := store.puts["uploads/photo.jpg"]; !ok {
		t.Error("expected the file to have been persisted to the store")
	}
}

func TestHandleFileRejectsDisallowedExtension(t *testing.T) {
	store := newFakeStore()
	u := NewUploader(store, nil, "uploads/")

	header := buildMultipartFile(t, "script.exe", []byte("x"))
	_, err := u.HandleFile(context.Background(), header)
	if err == nil {
		t.Fatal("expected an error for a disallowed extension")
	}
	if apperr.KindOf(err) != apperr.KindInvalidRequest {
		t.Errorf("KindOf(err) = %v, want KindInvalidRequest", apperr.KindOf(err))
	}
}

func TestHandleFileAssignsUniqueNameOnCollision(t *testing.T) {
	store := newFakeStore()
	store.existing["uploads/photo.jpg"] = true
	u := NewUploader(store, nil, "uploads/")

	header := buildMultipartFile(t, "photo.jpg", []byte("fake jpeg bytes"))
	result, err := u.HandleFile(context.Background(), header)
	if err != nil {
		t.Fatalf("HandleFile: %v", err)
	}
	if result.Path != "uploads/photo (1).jpg" {
		t.Errorf("Path = %q, want %q", result.Path, "uploads/photo (1).jpg")
	}
}

func TestHandleFileSurfacesStoreErrorsAsTransient(t *testing.T) {
	store := newFakeStore()
	store.headErr = errors.New("network down")
	u := NewUploader(store, nil, "uploads/")

	header := buildMultipartFile(t, "photo.jpg", []byte("x"))
	_, err := u.HandleFile(context.Background(), header)
	if err == nil {
		t.Fatal("expected an error when the existence check fails")
	}
	if apperr.KindOf(err) != apperr.KindTransient {
		t.Errorf("KindOf(err) = %v, want KindTransient", apperr.KindOf(err))
	}
}

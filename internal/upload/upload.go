// Package upload implements the original-asset ingestion path described in
// spec §4.13: multipart file acceptance, extension/MIME validation, unique
// path assignment, and default-thumbnail job enqueuing for video uploads.
package upload

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"mediaforge/internal/apperr"
	"mediaforge/internal/jobs"
	"mediaforge/internal/objectstore"
	"mediaforge/internal/transform"
)

const maxUploadBytes = 50 * 1024 * 1024 // 50 MiB, spec §4.13

const maxUniqueSuffixAttempts = 100

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// Result is the per-file outcome of an upload, used to build the multipart
// response.
type Result struct {
	OriginalName string `json:"original_name"`
	Path         string `json:"path,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Uploader validates and persists uploaded originals to the object store,
// enqueuing a default thumbnail job for videos.
type Uploader struct {
	Store     objectstore.Store
	JobStore  *jobs.Store
	Directory string // destination prefix within the object store, e.g. "uploads/"
}

// NewUploader builds an Uploader.
func NewUploader(store objectstore.Store, jobStore *jobs.Store, directory string) *Uploader {
	return &Uploader{Store: store, JobStore: jobStore, Directory: directory}
}

// HandleFile validates a single multipart file, assigns it a unique object
// store path, uploads it, and — for video sources — enqueues a default
// thumbnail job that claims ahead of user-requested transforms. Errors are
// returned rather than panicking so the caller can continue processing the
// remaining files in a batch upload.
func (u *Uploader) HandleFile(ctx context.Context, header *multipart.FileHeader) (*Result, error) {
	result := &Result{OriginalName: header.Filename}

	if header.Size > maxUploadBytes {
		return nil, apperr.InvalidRequest(fmt.Sprintf("file %q exceeds maximum size of %d bytes", header.Filename, maxUploadBytes), nil)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, apperr.InvalidRequest(fmt.Sprintf("file %q has unsupported extension %q", header.Filename, ext), nil)
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperr.InvalidRequest(fmt.Sprintf("open uploaded file %q", header.Filename), err)
	}
	defer file.Close()

	data := make([]byte, header.Size)
	if _, err := file.Read(data); err != nil && header.Size > 0 {
		return nil, apperr.InvalidRequest(fmt.Sprintf("read uploaded file %q", header.Filename), err)
	}

	destPath, err := u.uniquePath(ctx, header.Filename)
	if err != nil {
		return nil, err
	}

	if err := u.Store.Put(ctx, destPath, data, contentType, nil); err != nil {
		return nil, apperr.Transient(fmt.Sprintf("store file %q", header.Filename), err)
	}

	result.Path = destPath
	result.Size = header.Size

	if transform.IsVideoFormat(ext) {
		u.enqueueDefaultThumbnail(ctx, destPath)
	}

	return result, nil
}

// uniquePath finds a storage key that does not already exist, appending
// " (1)", " (2)", ... to the stem until one is free or the attempt ceiling
// is reached, per spec §8's "101st collision raises" boundary behavior.
func (u *Uploader) uniquePath(ctx context.Context, originalName string) (string, error) {
	ext := filepath.Ext(originalName)
	stem := sanitizeStem(strings.TrimSuffix(originalName, ext))

	for attempt := 0; attempt <= maxUniqueSuffixAttempts; attempt++ {
		candidate := path.Join(u.Directory, stem+ext)
		if attempt > 0 {
			candidate = path.Join(u.Directory, fmt.Sprintf("%s (%d)%s", stem, attempt, ext))
		}
		exists, err := u.Store.Head(ctx, candidate)
		if err != nil {
			return "", apperr.Transient("check existing upload path", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", apperr.InvalidRequest(fmt.Sprintf("could not find a unique path for %q after %d attempts", originalName, maxUniqueSuffixAttempts), nil)
}

// defaultThumbnailPriority is the job queue priority for upload-time
// default thumbnails: lower than a user-requested full transcode
// (requestJobPriority in internal/pipeline) so thumbnails are claimed
// first under ClaimNext's ascending-priority ordering.
const defaultThumbnailPriority = 1

func (u *Uploader) enqueueDefaultThumbnail(ctx context.Context, filePath string) {
	params := &transform.Params{
		Thumbnail:     true,
		ThumbnailTime: 5,
		Width:         500,
		Height:        500,
		Crop:          transform.CropFill,
		Format:        "webp",
		Quality:       80,
	}
	paramsJSON, err := params.ToJSON()
	if err != nil {
		return
	}
	fp := path.Join("cache", sanitizeStem(filePath)+".webp")
	_, _ = u.JobStore.Create(ctx, filePath, paramsJSON, fp, defaultThumbnailPriority, 3)
}

func sanitizeStem(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return replacer.Replace(name)
}

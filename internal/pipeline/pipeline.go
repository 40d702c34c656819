// Package pipeline implements the Transform Pipeline orchestrator (spec
// §4.12): parse the request path, derive the fingerprint, probe every
// cache tier, and either serve a ready result or hand a video job to the
// durable queue.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"mediaforge/internal/apperr"
	"mediaforge/internal/cache"
	"mediaforge/internal/fingerprint"
	"mediaforge/internal/imaging"
	"mediaforge/internal/invalidate"
	"mediaforge/internal/jobs"
	"mediaforge/internal/objectstore"
	"mediaforge/internal/transform"
	"mediaforge/internal/video"
)

const (
	// requestJobPriority is the queue priority for a user-requested full
	// video transform, claimed after upload-time default thumbnails
	// (priority 1 in internal/upload) under ClaimNext's ascending order.
	requestJobPriority  = 2
	requestJobMaxRetry  = 3
	maxImageSourceBytes = 32 * 1024 * 1024
	maxImageDimension   = 12000
)

// Outcome is what the HTTP handler renders: either Ready bytes or a queued
// video job the client should poll / subscribe to via SSE.
type Outcome struct {
	Ready        bool
	Data         []byte
	ContentType  string
	CacheControl string
	Width        int
	Height       int
	SourceBytes  int
	OutputBytes  int

	Queued   bool
	JobID    string
	CacheKey string
}

// Pipeline wires the cache tiers, codecs, and job queue together.
type Pipeline struct {
	Existence   *cache.ExistenceCache
	Disk        *cache.DiskCache
	Policy      *cache.Policy
	Remote      objectstore.Store
	Optimizer   *imaging.Optimizer
	Video       *video.Transformer
	Jobs        *jobs.Store
	Invalidator *invalidate.Invalidator
	TempDir     string
}

// New builds a Pipeline from its component dependencies.
func New(existence *cache.ExistenceCache, disk *cache.DiskCache, policy *cache.Policy, remote objectstore.Store, optimizer *imaging.Optimizer, transformer *video.Transformer, jobStore *jobs.Store, invalidator *invalidate.Invalidator, tempDir string) *Pipeline {
	return &Pipeline{
		Existence:   existence,
		Disk:        disk,
		Policy:      policy,
		Remote:      remote,
		Optimizer:   optimizer,
		Video:       transformer,
		Jobs:        jobStore,
		Invalidator: invalidator,
		TempDir:     tempDir,
	}
}

// Handle resolves a parsed transform path into an Outcome, per spec §4.12's
// step order: resolve originalPath + params, verify the original exists,
// compute the fingerprint, probe disk then remote, and only on a full miss
// produce the artifact (synchronously for images and video thumbnails,
// asynchronously via the job queue for full video transforms).
func (p *Pipeline) Handle(ctx context.Context, rest, accept, userAgent string) (*Outcome, error) {
	parsed, err := transform.Parse(rest)
	if err != nil {
		return nil, apperr.InvalidRequest("malformed transform path", err)
	}
	originalPath := parsed.OriginalPath
	params := parsed.Params

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalPath), "."))

	switch {
	case transform.IsImageFormat(ext):
		return p.handleImage(ctx, originalPath, ext, params, accept, userAgent)
	case transform.IsVideoFormat(ext):
		return p.handleVideo(ctx, originalPath, params)
	default:
		return nil, apperr.InvalidRequest(fmt.Sprintf("unsupported file extension %q", ext), nil)
	}
}

func (p *Pipeline) handleImage(ctx context.Context, originalPath, sourceFormat string, params *transform.Params, accept, userAgent string) (*Outcome, error) {
	exists, err := p.originalExists(ctx, originalPath)
	if err != nil {
		return nil, apperr.Transient("check original existence", err)
	}
	if !exists {
		if p.Invalidator != nil {
			_, _ = p.Invalidator.InvalidatePath(ctx, originalPath)
		}
		return nil, apperr.NotFound(fmt.Sprintf("original %q not found", originalPath), nil)
	}

	capability := imaging.DetectCapability(accept, userAgent)

	// fpParams folds the predicted format into the fingerprint so that
	// clients in different capability tiers land on different cache keys
	// (spec §4.7, §4.12 step 2). params itself is left with Format unset
	// when the request didn't name one explicitly, so Optimize still runs
	// its own candidate-format scoring instead of encoding a single guess.
	fpParams := params
	if !params.Has("format") {
		fpParams = params.Clone()
		fpParams.Format = imaging.PredictFormat(capability, sourceFormat, false)
	}

	fp := fingerprint.Compute(originalPath, fpParams)
	p.Policy.RecordAccess(originalPath)

	if data, ok := p.readLocal(fp.LocalFileName); ok {
		return readyImageOutcome(data, fpParams.Format, fp.Digest), nil
	}

	if data, ok := p.readRemote(ctx, fp.RemoteKey); ok {
		p.maybeKeepLocal(fp, originalPath, data)
		p.Policy.MaybeCleanup()
		return readyImageOutcome(data, fpParams.Format, fp.Digest), nil
	}

	source, err := p.Remote.Get(ctx, originalPath)
	if err != nil {
		return nil, apperr.Transient("fetch original", err)
	}

	validated, err := imaging.ValidateSource(source, maxImageSourceBytes, maxImageDimension)
	if err != nil {
		return nil, apperr.InvalidRequest("source image failed validation", err)
	}

	result, err := p.Optimizer.Optimize(source, params, capability, validated.Format, validated.HasAlpha)
	if err != nil {
		return nil, apperr.EncodingFailure("optimize image", err)
	}

	if err := p.Remote.Put(ctx, fp.RemoteKey, result.Data, "image/"+result.Format, map[string]string{"x-original-path": originalPath}); err != nil {
		return nil, apperr.Transient("store derived artifact", err)
	}
	p.Existence.Set(fp.RemoteKey, true)
	p.maybeKeepLocal(fp, originalPath, result.Data)
	p.Policy.MaybeCleanup()

	return &Outcome{
		Ready:        true,
		Data:         result.Data,
		ContentType:  "image/" + result.Format,
		CacheControl: cacheControlHeader,
		Width:        result.Width,
		Height:       result.Height,
		SourceBytes:  result.OriginalSize,
		OutputBytes:  result.OptimizedSize,
	}, nil
}

func (p *Pipeline) handleVideo(ctx context.Context, originalPath string, params *transform.Params) (*Outcome, error) {
	exists, err := p.originalExists(ctx, originalPath)
	if err != nil {
		return nil, apperr.Transient("check original existence", err)
	}
	if !exists {
		if p.Invalidator != nil {
			_, _ = p.Invalidator.InvalidatePath(ctx, originalPath)
		}
		return nil, apperr.NotFound(fmt.Sprintf("original %q not found", originalPath), nil)
	}

	fp := fingerprint.Compute(originalPath, params)
	p.Policy.RecordAccess(originalPath)

	if params.Thumbnail {
		return p.handleThumbnail(ctx, originalPath, params, fp)
	}

	if data, ok := p.readLocal(fp.LocalFileName); ok {
		return &Outcome{Ready: true, Data: data, ContentType: "video/mp4", CacheControl: cacheControlHeader}, nil
	}
	if data, ok := p.readRemote(ctx, fp.RemoteKey); ok {
		return &Outcome{Ready: true, Data: data, ContentType: "video/mp4", CacheControl: cacheControlHeader}, nil
	}

	paramsJSON, err := params.ToJSON()
	if err != nil {
		return nil, apperr.InvalidRequest("serialize transform parameters", err)
	}

	// The cache reads above already missed on both disk and remote. If a job
	// for this exact key previously completed, its artifact was evicted or
	// never replicated — reset it to pending instead of leaving a dangling
	// "completed" row alongside a fresh duplicate (spec §4.12 step 7).
	if existing, err := p.Jobs.GetByKey(ctx, originalPath, paramsJSON); err == nil && existing.Status == jobs.StatusCompleted {
		if _, resetErr := p.Jobs.ResetCompleted(ctx, existing.ID); resetErr != nil {
			return nil, apperr.Transient("reset completed-but-missing job", resetErr)
		}
		return &Outcome{Queued: true, JobID: existing.ID.String(), CacheKey: fp.RemoteKey}, nil
	}

	id, err := p.Jobs.Create(ctx, originalPath, paramsJSON, fp.RemoteKey, requestJobPriority, requestJobMaxRetry)
	if err != nil {
		return nil, apperr.Transient("enqueue video job", err)
	}

	return &Outcome{Queued: true, JobID: id.String(), CacheKey: fp.RemoteKey}, nil
}

// handleThumbnail extracts a single frame synchronously: cheap enough that
// queuing it would only add latency, matching spec §4.12's "video
// thumbnail" fast path. The thumbnail's own image format (defaulting to
// jpeg, but webp for the upload-time default thumbnail) drives both the
// destination file extension ffmpeg writes to and the response content type
// — fp.LocalFileName/RemoteKey carry the source video's extension, which
// would otherwise mismatch the image bytes actually produced.
func (p *Pipeline) handleThumbnail(ctx context.Context, originalPath string, params *transform.Params, fp fingerprint.Fingerprint) (*Outcome, error) {
	format := params.Format
	if format == "" {
		format = "jpeg"
	}
	thumbExt := format
	if thumbExt == "jpeg" {
		thumbExt = "jpg"
	}
	localName := fp.Digest + "_thumb." + thumbExt
	remoteKey := "cache/" + fp.Digest + "_thumb." + thumbExt
	contentType := "image/" + format

	if data, ok := p.readLocal(localName); ok {
		return &Outcome{Ready: true, Data: data, ContentType: contentType, CacheControl: cacheControlHeader}, nil
	}
	if data, ok := p.readRemote(ctx, remoteKey); ok {
		p.maybeKeepThumbnailLocal(localName, originalPath, data)
		return &Outcome{Ready: true, Data: data, ContentType: contentType, CacheControl: cacheControlHeader}, nil
	}

	source, err := p.Remote.Get(ctx, originalPath)
	if err != nil {
		return nil, apperr.Transient("fetch original video", err)
	}
	if err := p.Video.PreflightCheck(int64(len(source))); err != nil {
		return nil, apperr.InvalidRequest("video source too large", err)
	}

	srcPath := filepath.Join(p.TempDir, fp.Digest+"_src")
	destPath := filepath.Join(p.TempDir, localName)
	if err := writeTemp(srcPath, source); err != nil {
		return nil, apperr.Transient("stage source for thumbnail", err)
	}
	defer removeTemp(srcPath)
	defer removeTemp(destPath)

	if err := p.Video.Transcode(ctx, srcPath, destPath, params); err != nil {
		return nil, apperr.EncodingFailure("extract thumbnail", err)
	}

	data, err := readTemp(destPath)
	if err != nil {
		return nil, apperr.Transient("read thumbnail output", err)
	}

	if err := p.Remote.Put(ctx, remoteKey, data, contentType, map[string]string{"x-original-path": originalPath}); err != nil {
		return nil, apperr.Transient("store thumbnail", err)
	}
	p.Existence.Set(remoteKey, true)
	p.maybeKeepThumbnailLocal(localName, originalPath, data)

	return &Outcome{Ready: true, Data: data, ContentType: contentType, CacheControl: cacheControlHeader}, nil
}

func (p *Pipeline) maybeKeepThumbnailLocal(localName, originalPath string, data []byte) {
	if !p.Policy.ShouldKeepLocal(originalPath, int64(len(data))) {
		return
	}
	_ = p.Disk.Write(localName, data)
}

const cacheControlHeader = "public, max-age=31536000, must-revalidate"

func readyImageOutcome(data []byte, format, digest string) *Outcome {
	if sniffed := imaging.DetectFormat(data); sniffed != "" {
		format = sniffed
	}
	ct := "image/" + format
	if format == "" {
		ct = "application/octet-stream"
	}
	return &Outcome{Ready: true, Data: data, ContentType: ct, CacheControl: cacheControlHeader, OutputBytes: len(data)}
}

// originalExists reports whether the original is present in the remote
// store. A cached existence entry, positive or negative, is trusted as is;
// only a cache miss issues a remote Head, whose answer is then cached.
func (p *Pipeline) originalExists(ctx context.Context, originalPath string) (bool, error) {
	if cached, ok := p.Existence.Get(originalPath); ok {
		return cached, nil
	}
	exists, err := p.Remote.Head(ctx, originalPath)
	if err != nil {
		return false, err
	}
	p.Existence.Set(originalPath, exists)
	return exists, nil
}

func (p *Pipeline) readLocal(name string) ([]byte, bool) {
	if !p.Disk.Exists(name) {
		return nil, false
	}
	data, err := p.Disk.Read(name)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (p *Pipeline) readRemote(ctx context.Context, key string) ([]byte, bool) {
	if cached, ok := p.Existence.Get(key); ok && !cached {
		return nil, false
	}
	data, err := p.Remote.Get(ctx, key)
	if err != nil {
		p.Existence.Set(key, false)
		return nil, false
	}
	p.Existence.Set(key, true)
	return data, true
}

func (p *Pipeline) maybeKeepLocal(fp fingerprint.Fingerprint, originalPath string, data []byte) {
	if !p.Policy.ShouldKeepLocal(originalPath, int64(len(data))) {
		return
	}
	_ = p.Disk.Write(fp.LocalFileName, data)
}

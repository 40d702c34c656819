package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediaforge/internal/cache"
	"mediaforge/internal/events"
	"mediaforge/internal/objectstore"
	"mediaforge/internal/transform"
	"mediaforge/internal/video"
)

// Processor transcodes a single job's source into its cache destination. The
// worker pool calls it once per claimed job; DefaultProcessor below is the
// concrete implementation that wires in the object store and disk cache.
type Processor interface {
	Process(ctx context.Context, job *Job, params *transform.Params) (cachePath string, err error)
}

// Pool is the bounded polling worker pool described in spec §4.10: a fixed
// number of goroutines each try to claim and process one job per poll
// interval tick, guarded against re-entrant overlap per worker slot.
type Pool struct {
	store       *Store
	processor   Processor
	broker      *events.Broker
	concurrency int
	pollInterval time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool builds a Pool bound to concurrency workers polling every interval.
func NewPool(store *Store, processor Processor, broker *events.Broker, concurrency int, pollInterval time.Duration) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		store:        store,
		processor:    processor,
		broker:       broker,
		concurrency:  concurrency,
		pollInterval: pollInterval,
	}
}

// Start resets orphaned jobs from a prior crash and launches the worker
// goroutines. It returns once startup bookkeeping is done; workers continue
// running until Stop is called.
func (p *Pool) Start(ctx context.Context) error {
	n, err := p.store.ResetOrphans(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("reset orphaned video jobs", "count", n)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.runWorker(runCtx, i)
	}
	return nil
}

// Stop signals all workers to exit and waits for in-flight jobs to return.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, index int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.claimAndProcessOne(ctx, index)
		}
	}
}

// claimAndProcessOne is the re-entrancy guard: a worker claims and fully
// finishes one job before its next tick even looks at the queue again.
func (p *Pool) claimAndProcessOne(ctx context.Context, workerIndex int) {
	job, err := p.store.ClaimNext(ctx)
	if errors.Is(err, ErrNoJob) {
		return
	}
	if err != nil {
		slog.Error("claim job failed", "worker", workerIndex, "error", err)
		return
	}

	logger := slog.With("job_id", job.ID.String(), "worker", workerIndex, "file_path", job.FilePath)
	logger.Info("job claimed")

	p.broker.Publish(events.Event{
		Kind:  events.KindJobStarted,
		JobID: job.ID.String(),
		Data:  map[string]interface{}{"file_path": job.FilePath},
	})

	params, err := transform.ParamsFromJSON(job.ParamsJSON)
	if err != nil {
		p.fail(ctx, job, logger, err)
		return
	}

	cachePath, err := p.processor.Process(ctx, job, params)
	if err != nil {
		p.fail(ctx, job, logger, err)
		return
	}

	if err := p.store.Complete(ctx, job.ID, cachePath); err != nil {
		logger.Error("mark job complete failed", "error", err)
		return
	}

	logger.Info("job completed", "cache_path", cachePath)
	p.broker.Publish(events.Event{
		Kind:  events.KindJobComplete,
		JobID: job.ID.String(),
		Data:  map[string]interface{}{"cache_path": cachePath},
	})
}

func (p *Pool) fail(ctx context.Context, job *Job, logger *slog.Logger, procErr error) {
	logger.Error("job failed", "error", procErr, "retry_count", job.RetryCount, "max_retries", job.MaxRetries)
	if err := p.store.Fail(ctx, job.ID, procErr.Error()); err != nil {
		logger.Error("record job failure error", "error", err)
	}
	p.broker.Publish(events.Event{
		Kind:  events.KindJobError,
		JobID: job.ID.String(),
		Data:  map[string]interface{}{"error": procErr.Error()},
	})
}

// DefaultProcessor is the concrete Processor grounded on bitriver-live's
// exec.CommandContext transcoder invocation generalized to the durable job
// queue: download the original to a scratch file if needed, transcode via
// video.Transformer, and upload the result to the object store.
type DefaultProcessor struct {
	Store       objectstore.Store
	Disk        *cache.DiskCache
	Transformer *video.Transformer
	TempDir     string
}

// Process downloads the original, transcodes it per job.ParamsJSON, writes
// the result to the local disk cache, uploads it to the object store, and
// returns the object store key the pipeline should resolve the derived
// artifact at. Both cache tiers are populated so a worker crash or a
// completed-but-evicted remote object can be served from disk without
// re-transcoding, per spec §4.10 steps 4-5.
func (d *DefaultProcessor) Process(ctx context.Context, job *Job, params *transform.Params) (string, error) {
	src, err := d.downloadOriginal(ctx, job.FilePath)
	if err != nil {
		return "", err
	}
	defer os.Remove(src)

	if err := d.Transformer.PreflightCheck(fileSize(src)); err != nil {
		return "", err
	}

	destExt := "mp4"
	contentType := "video/mp4"
	if params.Thumbnail {
		format := params.Format
		if format == "" {
			format = "jpeg"
		}
		destExt = format
		if destExt == "jpeg" {
			destExt = "jpg"
		}
		contentType = "image/" + format
	}
	dest := filepath.Join(d.TempDir, job.ID.String()+"."+destExt)
	defer os.Remove(dest)

	if err := d.Transformer.Transcode(ctx, src, dest, params); err != nil {
		return "", err
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		return "", err
	}

	if d.Disk != nil {
		if err := d.Disk.Write(filepath.Base(job.CachePath), data); err != nil {
			slog.Warn("write transcoded output to local cache failed", "job_id", job.ID.String(), "error", err)
		}
	}

	if err := d.Store.Put(ctx, job.CachePath, data, contentType, map[string]string{"x-original-path": job.FilePath}); err != nil {
		return "", err
	}
	return job.CachePath, nil
}

func (d *DefaultProcessor) downloadOriginal(ctx context.Context, filePath string) (string, error) {
	data, err := d.Store.Get(ctx, filePath)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(d.TempDir, filepath.Base(filePath))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNoJob is returned by ClaimNext when the queue is empty.
var ErrNoJob = errors.New("jobs: no claimable job")

// ErrNotFound is returned when a job id or key does not resolve to a row.
var ErrNotFound = errors.New("jobs: not found")

// Store is the sqlx-backed durable queue described in spec §4.9: every
// mutating operation either is, or wraps, a single transaction so that
// claim/update/retry races are resolved by the database rather than by
// in-process locking.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an existing *sqlx.DB connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new pending job. If an active (pending or processing) job
// already exists for the same file_path+params_json key, its id is returned
// instead of inserting a duplicate, matching spec §4.9's dedup-by-key rule.
func (s *Store) Create(ctx context.Context, filePath, paramsJSON, cachePath string, priority, maxRetries int) (uuid.UUID, error) {
	var existing uuid.UUID
	err := s.db.GetContext(ctx, &existing, `
		SELECT id FROM video_jobs
		WHERE file_path = $1 AND params_json = $2 AND status IN ('pending', 'processing')
		LIMIT 1`, filePath, paramsJSON)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("check existing job: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO video_jobs
			(id, file_path, params_json, cache_path, status, priority, progress, error_text, retry_count, max_retries, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, 0, '', 0, $6, now())`,
		id, filePath, paramsJSON, cachePath, priority, maxRetries)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

// ClaimNext atomically selects the oldest pending job with the lowest
// priority number (priority ASC, then created_at ASC — thumbnail jobs at
// priority 1 claim ahead of full-transform requests at priority 2) and
// marks it processing, per spec §4.9's "claim_next" operation. SKIP LOCKED
// lets multiple worker pool instances poll the same table without claim
// races or lock waits.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	var job Job
	err = tx.GetContext(ctx, &job, `
		SELECT id, file_path, params_json, cache_path, status, priority, progress,
		       error_text, retry_count, max_retries, created_at, started_at, completed_at
		FROM video_jobs
		WHERE status = 'pending'
		ORDER BY priority ASC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE video_jobs SET status = 'processing', started_at = $2 WHERE id = $1`, job.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}

	job.Status = StatusProcessing
	job.StartedAt = &now
	return &job, nil
}

// UpdateProgress sets a processing job's progress percentage.
func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE video_jobs SET progress = $2 WHERE id = $1`, id, progress)
	return err
}

// Complete marks a job completed and records the final cache_path.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, cachePath string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE video_jobs
		SET status = 'completed', progress = 100, cache_path = $2, completed_at = now()
		WHERE id = $1`, id, cachePath)
	return err
}

// Fail records an error on a job. If the job has retries remaining it is
// reset to pending for another claim; otherwise it is marked error terminal.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, errText string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fail tx: %w", err)
	}
	defer tx.Rollback()

	var retryCount, maxRetries int
	err = tx.QueryRowxContext(ctx, `SELECT retry_count, max_retries FROM video_jobs WHERE id = $1`, id).
		Scan(&retryCount, &maxRetries)
	if err != nil {
		return fmt.Errorf("read retry state: %w", err)
	}

	if retryCount < maxRetries {
		_, err = tx.ExecContext(ctx, `
			UPDATE video_jobs
			SET status = 'pending', retry_count = retry_count + 1, error_text = $2, started_at = NULL
			WHERE id = $1`, id, errText)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE video_jobs
			SET status = 'error', error_text = $2, completed_at = now()
			WHERE id = $1`, id, errText)
	}
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return tx.Commit()
}

// ResetCompleted reverts a completed job back to pending, used when its
// cache artifact has gone missing (evicted or never replicated) so the
// worker pool regenerates it instead of the caller silently getting a stale
// completed status. Returns false if the job was not in the completed
// state, per spec §4.12 step 7 / Testable Invariant 5.
func (s *Store) ResetCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE video_jobs
		SET status = 'pending', progress = 0, started_at = NULL, completed_at = NULL
		WHERE id = $1 AND status = 'completed'`, id)
	if err != nil {
		return false, fmt.Errorf("reset completed job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetByKey finds an active or most-recent job for a file_path+params_json
// key, used to answer "is this derivative already queued" lookups.
func (s *Store) GetByKey(ctx context.Context, filePath, paramsJSON string) (*Job, error) {
	var job Job
	err := s.db.GetContext(ctx, &job, `
		SELECT id, file_path, params_json, cache_path, status, priority, progress,
		       error_text, retry_count, max_retries, created_at, started_at, completed_at
		FROM video_jobs
		WHERE file_path = $1 AND params_json = $2
		ORDER BY created_at DESC
		LIMIT 1`, filePath, paramsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job by key: %w", err)
	}
	return &job, nil
}

// GetByID fetches a single job by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	err := s.db.GetContext(ctx, &job, `
		SELECT id, file_path, params_json, cache_path, status, priority, progress,
		       error_text, retry_count, max_retries, created_at, started_at, completed_at
		FROM video_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return &job, nil
}

// Stats returns the count of jobs per status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT status, count(*) FROM video_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats row: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusError:
			stats.Error = count
		case StatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// Retry resets an error-terminal job back to pending with a fresh retry
// budget. Returns false if the job was not in a retryable state.
func (s *Store) Retry(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE video_jobs
		SET status = 'pending', retry_count = 0, error_text = '', started_at = NULL, completed_at = NULL
		WHERE id = $1 AND status = 'error'`, id)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Cancel moves a pending or processing job to cancelled. Returns false if
// the job was already terminal.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE video_jobs
		SET status = 'cancelled', completed_at = now()
		WHERE id = $1 AND status IN ('pending', 'processing')`, id)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes a job row outright.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM video_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// DeleteByFilePath removes all jobs referencing an original, used when the
// asset deleter cascades a delete through the queue.
func (s *Store) DeleteByFilePath(ctx context.Context, filePath string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM video_jobs WHERE file_path = $1`, filePath)
	if err != nil {
		return 0, fmt.Errorf("delete jobs by file_path: %w", err)
	}
	return res.RowsAffected()
}

// ResetOrphans reverts processing jobs back to pending at worker pool
// startup, recovering from a crash mid-job per spec §4.10.
func (s *Store) ResetOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE video_jobs SET status = 'pending', started_at = NULL WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("reset orphans: %w", err)
	}
	return res.RowsAffected()
}

// Cleanup deletes terminal jobs older than the given retention window.
func (s *Store) Cleanup(ctx context.Context, olderThanHours int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM video_jobs
		WHERE status IN ('completed', 'error', 'cancelled')
		AND completed_at < now() - ($1 || ' hours')::interval`, olderThanHours)
	if err != nil {
		return 0, fmt.Errorf("cleanup jobs: %w", err)
	}
	return res.RowsAffected()
}

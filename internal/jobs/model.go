// Package jobs implements the durable video job queue described in spec
// §4.9/§4.10: a relational job store with atomic claim semantics, and a
// bounded worker pool consuming it, grounded on the teacher's
// internal/imaging/service.go worker/retry shape generalized from an
// in-memory channel queue to a polling claim loop against durable storage.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job, per spec §3.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Job is the durable row described in spec §3's Video Job data model.
type Job struct {
	ID          uuid.UUID  `db:"id"`
	FilePath    string     `db:"file_path"`
	ParamsJSON  string     `db:"params_json"`
	CachePath   string     `db:"cache_path"`
	Status      Status     `db:"status"`
	Priority    int        `db:"priority"`
	Progress    int        `db:"progress"`
	ErrorText   string     `db:"error_text"`
	RetryCount  int        `db:"retry_count"`
	MaxRetries  int        `db:"max_retries"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Stats is the per-status count returned by Store.Stats.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
	Cancelled  int `json:"cancelled"`
}

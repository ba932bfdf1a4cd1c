// Package jobs defines import job descriptors and the progress tracker that
// follows them from queue to terminal state.
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an import job.
type State string

const (
	// StateQueued indicates the job is waiting for a worker.
	StateQueued State = "queued"

	// StateRunning indicates a worker is processing the job.
	StateRunning State = "running"

	// StateCompleted indicates the job finished successfully.
	StateCompleted State = "completed"

	// StateFailed indicates the job failed with an error.
	StateFailed State = "failed"

	// StateCanceled indicates the job was canceled before completion.
	StateCanceled State = "canceled"
)

// IsTerminal returns true if this state represents a final state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCanceled
}

// Options control which pipeline stages run for one import.
type Options struct {
	// Validate runs list validation on imported records.
	Validate bool `json:"validate"`

	// Correct applies correction rules before validation.
	Correct bool `json:"correct"`

	// ChunkSize overrides the configured chunk size when positive.
	ChunkSize int `json:"chunk_size,omitempty"`
}

// Import describes one import job travelling through the queue. The job
// carries its own cancelable context; canceling it takes effect between
// chunks, keeping rows already imported.
type Import struct {
	ID      string
	Path    string
	Options Options

	ctx    context.Context
	cancel context.CancelFunc
}

// NewImport creates an import job for the given file with a fresh ID and a
// context derived from parent.
func NewImport(parent context.Context, path string, opts Options) Import {
	ctx, cancel := context.WithCancel(parent)
	return Import{
		ID:      uuid.NewString(),
		Path:    path,
		Options: opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context returns the job's cancelable context.
func (j Import) Context() context.Context {
	return j.ctx
}

// Cancel cancels the job's context.
func (j Import) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// Progress counts rows as they move through the import pipeline.
type Progress struct {
	RowsRead     int `json:"rows_read"`
	RowsImported int `json:"rows_imported"`
	Duplicates   int `json:"duplicates"`
	Invalid      int `json:"invalid"`
	Corrected    int `json:"corrected"`
}

// Status is a point-in-time view of one tracked job.
type Status struct {
	JobID      string    `json:"job_id"`
	Path       string    `json:"path"`
	State      State     `json:"state"`
	Progress   Progress  `json:"progress"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the job has been or was running.
// Returns zero for jobs that never started.
func (s Status) Duration() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

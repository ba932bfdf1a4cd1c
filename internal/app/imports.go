package service

import (
	"context"
	"fmt"
	"os"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

// ImportOptions returns the default pipeline options for new imports,
// reflecting the configured auto-validate and auto-correct switches.
func (s *Service) ImportOptions() jobs.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jobs.Options{Validate: s.autoValidate, Correct: s.autoCorrect}
}

// ImportFile queues a CSV file for import and returns the job's initial
// status. The job carries its own context so it survives the request that
// queued it.
func (s *Service) ImportFile(ctx context.Context, path string, opts jobs.Options) (jobs.Status, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return jobs.Status{}, ErrNotStarted
	}
	jobQueue, tracker, bus := s.jobQueue, s.tracker, s.bus
	s.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		return jobs.Status{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if info.IsDir() {
		return jobs.Status{}, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	job := jobs.NewImport(context.WithoutCancel(ctx), path, opts)
	tracker.Track(job)

	if !jobQueue.Enqueue(ctx, job) {
		tracker.Remove(job.ID)
		job.Cancel()
		if jobQueue.IsClosed() {
			return jobs.Status{}, ErrQueueClosed
		}
		return jobs.Status{}, ErrQueueFull
	}

	bus.Publish(events.NewImportQueuedEvent(job.ID, path))
	s.logger.Info(ctx, "import queued",
		logger.String("job_id", job.ID),
		logger.String("path", path),
	)

	return tracker.Status(job.ID)
}

// ImportStatus returns the current status of one import job.
func (s *Service) ImportStatus(id string) (jobs.Status, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return jobs.Status{}, ErrNotStarted
	}
	tracker := s.tracker
	s.mu.RUnlock()

	return tracker.Status(id)
}

// ListImports returns every tracked import job in enqueue order.
func (s *Service) ListImports() []jobs.Status {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil
	}
	tracker := s.tracker
	s.mu.RUnlock()

	return tracker.Statuses()
}

// RecentImports returns the most recent archived import runs, newest
// first. Returns nothing when archiving is disabled.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]archive.ImportRun, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	history := s.history
	s.mu.RUnlock()

	if history == nil {
		return nil, nil
	}
	return history.RecentImports(ctx, limit)
}

// CancelImport cancels a queued or running import. A queued job settles
// immediately; a running job stops between chunks and keeps the rows
// already imported. Canceling a finished job is a no-op.
func (s *Service) CancelImport(id string) error {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return ErrNotStarted
	}
	tracker, bus := s.tracker, s.bus
	s.mu.RUnlock()

	flipped, err := tracker.Cancel(id)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	// Queued jobs settle here; the worker announces running ones when it
	// notices the canceled context.
	if st, serr := tracker.Status(id); serr == nil && st.State == jobs.StateCanceled {
		bus.Publish(events.NewImportCanceledEvent(st.JobID, st.Path))
		metrics.RecordImportCanceled()
	}

	return nil
}

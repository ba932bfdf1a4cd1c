// Package worker defines worker contracts for asynchronous import processing.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/mq/queue"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/domain/validation"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job abstracts what workers read off the queue.
// Using the jobs.Import type for consistency.
type Job = jobs.Import

// Store receives imported records.
type Store interface {
	AddBatch(ctx context.Context, recs []model.Record) (int, error)
	RefreshSnapshot()
}

// Deduper remembers row content keys across imports so re-imported files
// only contribute new rows.
type Deduper interface {
	SeenAndRecord(ctx context.Context, key string) bool
	Unrecord(ctx context.Context, key string)
}

// Corrector applies correction rules to a record before validation.
type Corrector interface {
	Apply(ctx context.Context, rec *model.Record) []correction.Change
}

// Validator checks a record against the reference lists.
type Validator interface {
	Validate(ctx context.Context, rec *model.Record) validation.Result
}

// Tracker follows a job from start to its terminal state.
type Tracker interface {
	Start(id string) bool
	SetProgress(id string, p jobs.Progress)
	Complete(id string)
	Fail(id string, errMsg string)
	MarkCanceled(id string)
}

// Bus publishes import lifecycle events.
type Bus interface {
	Publish(e events.Event)
}

// Archiver keeps a permanent log of finished import runs.
type Archiver interface {
	RecordImportRun(ctx context.Context, run archive.ImportRun) error
}

// Queue defines how workers receive import jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Deps bundles the pipeline collaborators shared by all workers.
// Store and Tracker are required; the rest degrade to no-ops when nil.
type Deps struct {
	Store     Store
	Tracker   Tracker
	Deduper   Deduper
	Corrector Corrector
	Validator Validator
	Bus       Bus
	Archiver  Archiver
}

// Worker processes import jobs using the provided collaborators.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// A running import is canceled between chunks, keeping rows already imported.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing import jobs.
type InMemoryWorker struct {
	queue     Queue
	deps      Deps
	name      string
	chunkSize int

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	// Set by the pool to feed the jobs-per-second gauge.
	onProcessed func()

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, deps Deps, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		deps:      deps,
		name:      "worker", // default name
		chunkSize: csvio.DefaultChunkSize,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			// Process the import job
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing import", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signalShutdown()

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// signalShutdown asks the worker to stop; a running import cancels at the
// next chunk boundary.
func (w *InMemoryWorker) signalShutdown() {
	w.shutdownOnce.Do(func() {
		close(w.shutdown)
	})
}

// processJob runs one import through the pipeline: read the file in chunks,
// drop rows already imported, correct, validate, store. Progress lands in
// the tracker and on the event bus after every chunk, and cancellation is
// honored between chunks so rows already imported stay in the table.
func (w *InMemoryWorker) processJob(ctx context.Context, job queue.Job) error {
	// Track overall processing latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	// Jobs canceled while still queued were finalized by the tracker; skip them.
	if !w.deps.Tracker.Start(job.ID) {
		return nil
	}

	w.logger.Info(ctx, "import started",
		logger.String("jobID", job.ID),
		logger.String("file", job.Path),
	)

	reader, err := csvio.OpenFile(job.Path, csvio.WithChunkSize(w.chunkSizeFor(job)))
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "open_error")
		w.failJob(ctx, job, jobs.Progress{}, start, err)
		return fmt.Errorf("opening %s: %w", job.Path, err)
	}
	defer func() { _ = reader.Close() }()

	jobCtx := job.Context()
	var prog jobs.Progress

	for {
		if w.stopRequested(ctx, jobCtx) {
			w.cancelJob(ctx, job, prog, start)
			return nil
		}

		recs, rowErrs, readErr := reader.ReadChunk(jobCtx)
		prog.RowsRead += len(recs) + len(rowErrs)
		prog.Invalid += len(rowErrs)
		for _, rowErr := range rowErrs {
			w.logger.Warn(ctx, "skipping malformed row",
				logger.String("file", job.Path),
				logger.Int("line", rowErr.Line),
				logger.Error(rowErr.Err),
			)
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			if isCancellation(readErr) {
				w.cancelJob(ctx, job, prog, start)
				return nil
			}
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "read_error")
			w.failJob(ctx, job, prog, start, readErr)
			return fmt.Errorf("reading %s: %w", job.Path, readErr)
		}

		if err := w.processChunk(jobCtx, job, recs, &prog); err != nil {
			if isCancellation(err) {
				w.cancelJob(ctx, job, prog, start)
				return nil
			}
			w.failJob(ctx, job, prog, start, err)
			return err
		}

		w.deps.Tracker.SetProgress(job.ID, prog)
		w.publish(events.NewImportProgressEvent(job.ID, prog.RowsRead, prog.RowsImported, prog.Duplicates, prog.Invalid))

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	w.completeJob(ctx, job, prog, start)
	return nil
}

// processChunk pushes one chunk of records through dedupe, correction and
// validation, then stores what survives.
func (w *InMemoryWorker) processChunk(ctx context.Context, job Job, recs []model.Record, prog *jobs.Progress) error {
	if len(recs) == 0 {
		return nil
	}

	batch := make([]model.Record, 0, len(recs))
	for i := range recs {
		rec := &recs[i]

		if w.deps.Deduper != nil && w.deps.Deduper.SeenAndRecord(ctx, rec.ContentKey()) {
			prog.Duplicates++
			continue
		}
		if job.Options.Correct && w.deps.Corrector != nil {
			if changes := w.deps.Corrector.Apply(ctx, rec); len(changes) > 0 {
				prog.Corrected++
			}
		}
		if job.Options.Validate && w.deps.Validator != nil {
			// Records failing list validation still import, flagged for review.
			w.deps.Validator.Validate(ctx, rec)
		}
		batch = append(batch, *rec)
	}

	if len(batch) == 0 {
		return nil
	}

	added, err := w.deps.Store.AddBatch(ctx, batch)
	if err != nil {
		// Release the content keys so the rows can be imported again.
		if w.deps.Deduper != nil {
			for i := range batch {
				w.deps.Deduper.Unrecord(ctx, batch[i].ContentKey())
			}
		}
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		return fmt.Errorf("storing batch: %w", err)
	}
	prog.RowsImported += added
	return nil
}

// completeJob finalizes a successful import.
func (w *InMemoryWorker) completeJob(ctx context.Context, job Job, prog jobs.Progress, start time.Time) {
	if prog.RowsImported > 0 {
		w.deps.Store.RefreshSnapshot()
	}
	w.deps.Tracker.SetProgress(job.ID, prog)
	w.deps.Tracker.Complete(job.ID)
	metrics.RecordImportCompleted()
	recordPipelineTotals(prog)

	duration := time.Since(start)
	if prog.RowsImported > 0 {
		w.publish(events.NewRecordsImportedEvent(job.ID, job.Path, prog.RowsImported, prog.Duplicates, prog.Invalid))
	}
	w.publish(events.NewImportCompletedEvent(job.ID, job.Path, prog.RowsRead, prog.RowsImported, prog.Duplicates, prog.Invalid, prog.Corrected, duration))
	w.archiveRun(ctx, job, prog, jobs.StateCompleted, "", start)

	w.logger.Info(ctx, "import completed",
		logger.String("jobID", job.ID),
		logger.String("file", job.Path),
		logger.Int("imported", prog.RowsImported),
		logger.Int("duplicates", prog.Duplicates),
		logger.Int("invalid", prog.Invalid),
		logger.Duration("duration", duration),
	)
	if w.onProcessed != nil {
		w.onProcessed()
	}
}

// failJob finalizes an import that hit an unrecoverable error. Chunks stored
// before the error stay in the table.
func (w *InMemoryWorker) failJob(ctx context.Context, job Job, prog jobs.Progress, start time.Time, cause error) {
	if prog.RowsImported > 0 {
		w.deps.Store.RefreshSnapshot()
		w.publish(events.NewRecordsImportedEvent(job.ID, job.Path, prog.RowsImported, prog.Duplicates, prog.Invalid))
	}
	w.deps.Tracker.SetProgress(job.ID, prog)
	w.deps.Tracker.Fail(job.ID, cause.Error())
	metrics.RecordImportFailed()
	recordPipelineTotals(prog)

	w.publish(events.NewImportFailedEvent(job.ID, job.Path, cause.Error()))
	w.archiveRun(ctx, job, prog, jobs.StateFailed, cause.Error(), start)

	w.logger.Error(ctx, "import failed",
		logger.String("jobID", job.ID),
		logger.String("file", job.Path),
		logger.Int("imported", prog.RowsImported),
		logger.Error(cause),
	)
	if w.onProcessed != nil {
		w.onProcessed()
	}
}

// cancelJob finalizes an import whose context was canceled between chunks.
func (w *InMemoryWorker) cancelJob(ctx context.Context, job Job, prog jobs.Progress, start time.Time) {
	if prog.RowsImported > 0 {
		w.deps.Store.RefreshSnapshot()
		w.publish(events.NewRecordsImportedEvent(job.ID, job.Path, prog.RowsImported, prog.Duplicates, prog.Invalid))
	}
	w.deps.Tracker.SetProgress(job.ID, prog)
	w.deps.Tracker.MarkCanceled(job.ID)
	metrics.RecordImportCanceled()
	recordPipelineTotals(prog)

	w.publish(events.NewImportCanceledEvent(job.ID, job.Path))
	w.archiveRun(ctx, job, prog, jobs.StateCanceled, "", start)

	w.logger.Info(ctx, "import canceled",
		logger.String("jobID", job.ID),
		logger.String("file", job.Path),
		logger.Int("imported", prog.RowsImported),
	)
	if w.onProcessed != nil {
		w.onProcessed()
	}
}

// archiveRun records the finished run in the archive. Archive failures are
// logged, never surfaced; the import outcome stands either way.
func (w *InMemoryWorker) archiveRun(ctx context.Context, job Job, prog jobs.Progress, state jobs.State, errMsg string, start time.Time) {
	if w.deps.Archiver == nil {
		return
	}

	run := archive.ImportRun{
		JobID:        job.ID,
		Path:         job.Path,
		State:        string(state),
		RowsRead:     prog.RowsRead,
		RowsImported: prog.RowsImported,
		Duplicates:   prog.Duplicates,
		Invalid:      prog.Invalid,
		Corrected:    prog.Corrected,
		Error:        errMsg,
		StartedAt:    start,
		FinishedAt:   time.Now(),
	}
	// Archive writes outlive job cancellation.
	if err := w.deps.Archiver.RecordImportRun(context.WithoutCancel(ctx), run); err != nil {
		w.logger.Warn(ctx, "archiving import run failed",
			logger.String("jobID", job.ID),
			logger.Error(err),
		)
	}
}

// publish sends an event when a bus is wired.
func (w *InMemoryWorker) publish(e events.Event) {
	if w.deps.Bus != nil {
		w.deps.Bus.Publish(e)
	}
}

// stopRequested reports whether the job or the worker is being stopped.
func (w *InMemoryWorker) stopRequested(ctx, jobCtx context.Context) bool {
	select {
	case <-w.shutdown:
		return true
	default:
	}
	return jobCtx.Err() != nil || ctx.Err() != nil
}

// chunkSizeFor resolves the chunk size, letting the job override the
// worker's configured default.
func (w *InMemoryWorker) chunkSizeFor(job Job) int {
	if job.Options.ChunkSize > 0 {
		return job.Options.ChunkSize
	}
	return w.chunkSize
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func recordPipelineTotals(prog jobs.Progress) {
	metrics.RecordRowsImported(prog.RowsImported)
	metrics.RecordDuplicateRows(prog.Duplicates)
	metrics.RecordMalformedRows(prog.Invalid)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	deps    Deps

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// Metrics tracking
	processedCount    atomic.Int64
	lastProcessedTime time.Time

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, queue Queue, deps Deps, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:           make([]*InMemoryWorker, workerCount),
		queue:             queue,
		deps:              deps,
		shutdown:          make(chan struct{}),
		lastProcessedTime: time.Now(),
		logger:            logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, deps, workerOpts...)
		pool.workers[i].onProcessed = pool.recordProcessedJob
	}

	// Initialize worker metrics
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerIdleCount(0)
	metrics.UpdateWorkerJobsPerSecond(0.0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}

	// Start metrics updater
	go p.startMetricsUpdater(ctx)
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// startMetricsUpdater starts a background goroutine that updates worker metrics.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval) // Update metrics every 5 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

// updateMetrics updates worker-related metrics.
func (p *Pool) updateMetrics() {
	// Calculate jobs per second since the last tick
	now := time.Now()
	timeDiff := now.Sub(p.lastProcessedTime).Seconds()
	if timeDiff > 0 {
		jobsPerSecond := float64(p.processedCount.Swap(0)) / timeDiff
		metrics.UpdateWorkerJobsPerSecond(jobsPerSecond)
	}
	p.lastProcessedTime = now
}

// recordProcessedJob increments the processed job count.
func (p *Pool) recordProcessedJob() {
	p.processedCount.Add(1)
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	_ = p.Shutdown(ctx)
}

// Shutdown gracefully shuts down the entire worker pool. Running imports
// are canceled between chunks; rows already imported stay in the table.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new jobs
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Signal shutdown to the metrics updater and all workers up front so
	// running imports cancel in parallel, not one by one.
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	for _, worker := range p.workers {
		worker.signalShutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		if err := worker.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}

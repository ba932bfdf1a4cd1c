package jobs

import (
	"sort"
	"sync"
	"time"
)

// Tracker is the progress registry for import jobs. It owns each job's
// status record and the cancel hook, so HTTP handlers can poll and cancel
// jobs they never held a reference to.
type Tracker struct {
	mu      sync.RWMutex
	jobs    map[string]*trackedJob
	nextSeq uint64
}

type trackedJob struct {
	seq    uint64
	status Status
	cancel func()
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		jobs: make(map[string]*trackedJob),
	}
}

// Track registers a freshly enqueued job in the queued state.
func (t *Tracker) Track(job Import) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSeq++
	t.jobs[job.ID] = &trackedJob{
		seq: t.nextSeq,
		status: Status{
			JobID:      job.ID,
			Path:       job.Path,
			State:      StateQueued,
			EnqueuedAt: time.Now(),
		},
		cancel: job.Cancel,
	}
}

// Remove forgets a job entirely. Used when the queue refuses a job that
// was already tracked.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// Start transitions a queued job to running. Returns false when the job is
// unknown or no longer queued, which tells the worker to skip it.
func (t *Tracker) Start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.status.State != StateQueued {
		return false
	}
	job.status.State = StateRunning
	job.status.StartedAt = time.Now()
	return true
}

// SetProgress replaces a job's progress counters with the given absolute
// values.
func (t *Tracker) SetProgress(id string, p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[id]; ok {
		job.status.Progress = p
	}
}

// Complete transitions a job to the completed state.
func (t *Tracker) Complete(id string) {
	t.finish(id, StateCompleted, "")
}

// Fail transitions a job to the failed state with the given error message.
func (t *Tracker) Fail(id string, errMsg string) {
	t.finish(id, StateFailed, errMsg)
}

// MarkCanceled transitions a job to the canceled state. Called by the
// worker once it observes the canceled context between chunks.
func (t *Tracker) MarkCanceled(id string) {
	t.finish(id, StateCanceled, "")
}

func (t *Tracker) finish(id string, state State, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.status.State.IsTerminal() {
		return
	}
	job.status.State = state
	job.status.Error = errMsg
	job.status.FinishedAt = time.Now()
}

// Cancel cancels a job. A queued job flips to canceled immediately; a
// running job has its context canceled and finalizes once the worker
// notices, so rows already imported stay in the table. Returns false
// without error when the job already reached a terminal state.
func (t *Tracker) Cancel(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return false, ErrUnknownJob
	}
	if job.status.State.IsTerminal() {
		return false, nil
	}

	if job.cancel != nil {
		job.cancel()
	}
	if job.status.State == StateQueued {
		job.status.State = StateCanceled
		job.status.FinishedAt = time.Now()
	}
	return true, nil
}

// Status returns a copy of the job's current status.
func (t *Tracker) Status(id string) (Status, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return Status{}, ErrUnknownJob
	}
	return job.status, nil
}

// Statuses returns every tracked job in enqueue order.
func (t *Tracker) Statuses() []Status {
	type seqStatus struct {
		seq    uint64
		status Status
	}

	t.mu.RLock()
	ordered := make([]seqStatus, 0, len(t.jobs))
	for _, job := range t.jobs {
		ordered = append(ordered, seqStatus{seq: job.seq, status: job.status})
	}
	t.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})

	out := make([]Status, len(ordered))
	for i, s := range ordered {
		out[i] = s.status
	}
	return out
}

// InFlight returns how many jobs are queued or running.
func (t *Tracker) InFlight() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, job := range t.jobs {
		if !job.status.State.IsTerminal() {
			count++
		}
	}
	return count
}

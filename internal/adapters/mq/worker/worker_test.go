package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	queue "github.com/LinkesAuge/chestbuddy/internal/adapters/mq/queue"
	worker "github.com/LinkesAuge/chestbuddy/internal/adapters/mq/worker"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/dedupe"
	model "github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/domain/validation"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
	logging "github.com/LinkesAuge/chestbuddy/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobChan    chan queue.Job
	closeError error
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		jobChan: make(chan queue.Job, 10),
	}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobChan
}

func (mq *mockQueue) Close() error {
	close(mq.jobChan)
	return mq.closeError
}

func (mq *mockQueue) addJob(job queue.Job) {
	mq.jobChan <- job
}

type mockStore struct {
	mu        sync.Mutex
	records   []model.Record
	refreshes int
	addErr    error
	gate      chan struct{} // when set, AddBatch blocks until it is closed
}

func newMockStore() *mockStore {
	return &mockStore{}
}

func (ms *mockStore) AddBatch(ctx context.Context, recs []model.Record) (int, error) {
	if ms.gate != nil {
		<-ms.gate
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.addErr != nil {
		return 0, ms.addErr
	}
	ms.records = append(ms.records, recs...)
	return len(recs), nil
}

func (ms *mockStore) RefreshSnapshot() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.refreshes++
}

func (ms *mockStore) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.records)
}

func (ms *mockStore) all() []model.Record {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]model.Record, len(ms.records))
	copy(out, ms.records)
	return out
}

func (ms *mockStore) refreshCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.refreshes
}

type mockArchiver struct {
	mu   sync.Mutex
	runs []archive.ImportRun
}

func (ma *mockArchiver) RecordImportRun(ctx context.Context, run archive.ImportRun) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.runs = append(ma.runs, run)
	return nil
}

func (ma *mockArchiver) all() []archive.ImportRun {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	out := make([]archive.ImportRun, len(ma.runs))
	copy(out, ma.runs)
	return out
}

// stubValidator flags every record invalid so tests can check that flagged
// records still import.
type stubValidator struct {
	mu    sync.Mutex
	calls int
}

func (sv *stubValidator) Validate(_ context.Context, rec *model.Record) validation.Result {
	sv.mu.Lock()
	sv.calls++
	sv.mu.Unlock()

	rec.Validation = model.ValidationState{Status: model.StatusInvalid, Fields: []model.Field{model.FieldPlayer}}
	return validation.Result{RecordID: rec.ID, Valid: false}
}

func (sv *stubValidator) callCount() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.calls
}

type eventLog struct {
	mu    sync.Mutex
	types []events.EventType
}

func (el *eventLog) record(e events.Event) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.types = append(el.types, e.EventType())
}

func (el *eventLog) has(et events.EventType) bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	for _, t := range el.types {
		if t == et {
			return true
		}
	}
	return false
}

// writeCSV drops a chest data file with the canonical header into a temp
// dir and returns its path.
func writeCSV(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chests.csv")
	content := "Date,Player Name,Source/Location,Chest Type,Value,Clan\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

// waitForState polls the tracker until the job reaches the wanted state or
// the timeout expires, returning the last observed status either way.
func waitForState(tracker *jobs.Tracker, id string, want jobs.State, timeout time.Duration) jobs.Status {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := tracker.Status(id)
		if err == nil && status.State == want {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, _ := tracker.Status(id)
	return status
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		q := newMockQueue()
		store := newMockStore()
		tracker := jobs.NewTracker()
		deps := worker.Deps{Store: store, Tracker: tracker}

		convey.Convey("When creating a worker with default options", func() {
			w := worker.NewInMemoryWorker(q, deps)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(
				q, deps,
				worker.WithName("test-worker"),
				worker.WithChunkSize(50),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			bus := events.NewBus()
			log := &eventLog{}
			bus.SubscribeAll(log.record)
			deps.Bus = bus

			w := worker.NewInMemoryWorker(q, deps)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Start worker in goroutine
			go w.Run(ctx)

			convey.Convey("And when processing an import job", func() {
				path := writeCSV(t,
					"2023-03-11,Feldjäger,Level 25 Crypt,Fire Chest,275,MY_CLAN",
					"2023-03-11,Krümelmonster,Mercenary Exchange,Bone Chest,140,MY_CLAN",
					"2023-03-12,Waldgeist,Level 10 Crypt,Wood Chest,55,MY_CLAN",
				)
				job := jobs.NewImport(ctx, path, jobs.Options{})
				tracker.Track(job)
				q.addJob(job)

				status := waitForState(tracker, job.ID, jobs.StateCompleted, time.Second)

				convey.Convey("Then the job should complete with every row imported", func() {
					convey.So(status.State, convey.ShouldEqual, jobs.StateCompleted)
					convey.So(status.Progress.RowsRead, convey.ShouldEqual, 3)
					convey.So(status.Progress.RowsImported, convey.ShouldEqual, 3)
					convey.So(status.Progress.Duplicates, convey.ShouldEqual, 0)
					convey.So(status.Progress.Invalid, convey.ShouldEqual, 0)
					convey.So(store.count(), convey.ShouldEqual, 3)
					convey.So(store.refreshCount(), convey.ShouldEqual, 1)
				})

				convey.Convey("Then lifecycle events should be published", func() {
					convey.So(log.has(events.ImportProgress), convey.ShouldBeTrue)
					convey.So(log.has(events.ImportCompleted), convey.ShouldBeTrue)
					convey.So(log.has(events.RecordsImported), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And when the file has malformed rows", func() {
				path := writeCSV(t,
					"2023-03-11,Feldjäger,Level 25 Crypt,Fire Chest,275,MY_CLAN",
					"2023-03-11,Broken,Level 5 Crypt,Iron Chest,not-a-number,MY_CLAN",
					"2023-03-12,Waldgeist,Level 10 Crypt,Wood Chest,55,MY_CLAN",
				)
				job := jobs.NewImport(ctx, path, jobs.Options{})
				tracker.Track(job)
				q.addJob(job)

				status := waitForState(tracker, job.ID, jobs.StateCompleted, time.Second)

				convey.Convey("Then good rows import and bad rows are counted", func() {
					convey.So(status.State, convey.ShouldEqual, jobs.StateCompleted)
					convey.So(status.Progress.RowsRead, convey.ShouldEqual, 3)
					convey.So(status.Progress.RowsImported, convey.ShouldEqual, 2)
					convey.So(status.Progress.Invalid, convey.ShouldEqual, 1)
					convey.So(store.count(), convey.ShouldEqual, 2)
				})
			})

			convey.Convey("And when the file does not exist", func() {
				job := jobs.NewImport(ctx, filepath.Join(t.TempDir(), "missing.csv"), jobs.Options{})
				tracker.Track(job)
				q.addJob(job)

				status := waitForState(tracker, job.ID, jobs.StateFailed, time.Second)

				convey.Convey("Then the job should fail with an error", func() {
					convey.So(status.State, convey.ShouldEqual, jobs.StateFailed)
					convey.So(status.Error, convey.ShouldNotBeEmpty)
					convey.So(log.has(events.ImportFailed), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := w.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, deps)
			ctx, cancel := context.WithCancel(context.Background())

			// Start worker in goroutine
			go w.Run(ctx)

			// Cancel context
			cancel()

			// Give worker time to stop
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then shutdown should return immediately", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPipeline(t *testing.T) {
	convey.Convey("Given a worker with the full pipeline wired", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		store := newMockStore()
		tracker := jobs.NewTracker()
		deduper := dedupe.NewInMemoryDeduper()
		corrector := correction.New()
		corrector.SetRules([]correction.Rule{
			{ID: "rule-1", From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: true},
		})
		validator := &stubValidator{}
		archiver := &mockArchiver{}

		deps := worker.Deps{
			Store:     store,
			Tracker:   tracker,
			Deduper:   deduper,
			Corrector: corrector,
			Validator: validator,
			Archiver:  archiver,
		}

		w := worker.NewInMemoryWorker(q, deps)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		convey.Convey("When importing with correction and validation enabled", func() {
			path := writeCSV(t,
				"2023-03-11,Feldjager,Level 25 Crypt,Fire Chest,275,MY_CLAN",
				"2023-03-11,Krümelmonster,Mercenary Exchange,Bone Chest,140,MY_CLAN",
			)
			job := jobs.NewImport(ctx, path, jobs.Options{Validate: true, Correct: true})
			tracker.Track(job)
			q.addJob(job)

			status := waitForState(tracker, job.ID, jobs.StateCompleted, time.Second)

			convey.Convey("Then corrections should be applied before storing", func() {
				convey.So(status.Progress.Corrected, convey.ShouldEqual, 1)

				var players []string
				for _, rec := range store.all() {
					players = append(players, rec.Player)
				}
				convey.So(players, convey.ShouldContain, "Feldjäger")
				convey.So(players, convey.ShouldNotContain, "Feldjager")
			})

			convey.Convey("Then flagged records should still be imported", func() {
				convey.So(validator.callCount(), convey.ShouldEqual, 2)
				convey.So(store.count(), convey.ShouldEqual, 2)
				for _, rec := range store.all() {
					convey.So(rec.Validation.Status, convey.ShouldEqual, model.StatusInvalid)
				}
			})

			convey.Convey("Then the run should land in the archive", func() {
				runs := archiver.all()
				convey.So(len(runs), convey.ShouldEqual, 1)
				convey.So(runs[0].JobID, convey.ShouldEqual, job.ID)
				convey.So(runs[0].State, convey.ShouldEqual, "completed")
				convey.So(runs[0].RowsImported, convey.ShouldEqual, 2)
				convey.So(runs[0].Corrected, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the same file is imported twice", func() {
			path := writeCSV(t,
				"2023-03-11,Feldjäger,Level 25 Crypt,Fire Chest,275,MY_CLAN",
				"2023-03-11,Krümelmonster,Mercenary Exchange,Bone Chest,140,MY_CLAN",
			)

			first := jobs.NewImport(ctx, path, jobs.Options{})
			tracker.Track(first)
			q.addJob(first)
			waitForState(tracker, first.ID, jobs.StateCompleted, time.Second)

			second := jobs.NewImport(ctx, path, jobs.Options{})
			tracker.Track(second)
			q.addJob(second)
			status := waitForState(tracker, second.ID, jobs.StateCompleted, time.Second)

			convey.Convey("Then the second run should skip every row as duplicate", func() {
				convey.So(status.State, convey.ShouldEqual, jobs.StateCompleted)
				convey.So(status.Progress.RowsRead, convey.ShouldEqual, 2)
				convey.So(status.Progress.RowsImported, convey.ShouldEqual, 0)
				convey.So(status.Progress.Duplicates, convey.ShouldEqual, 2)
				convey.So(store.count(), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestWorkerCancellation(t *testing.T) {
	convey.Convey("Given a running import", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		store := newMockStore()
		store.gate = make(chan struct{})
		tracker := jobs.NewTracker()
		bus := events.NewBus()
		log := &eventLog{}
		bus.SubscribeAll(log.record)

		deps := worker.Deps{Store: store, Tracker: tracker, Bus: bus}
		w := worker.NewInMemoryWorker(q, deps, worker.WithChunkSize(1))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		rows := make([]string, 6)
		for i := range rows {
			rows[i] = fmt.Sprintf("2023-03-%02d,Feldjäger,Level 25 Crypt,Fire Chest,%d,MY_CLAN", i+10, 100+i)
		}
		path := writeCSV(t, rows...)

		convey.Convey("When the job is canceled mid-import", func() {
			job := jobs.NewImport(ctx, path, jobs.Options{})
			tracker.Track(job)
			q.addJob(job)

			// Let the first single-row chunk through, then cancel while the
			// store still blocks the second one.
			store.gate <- struct{}{}
			job.Cancel()
			close(store.gate)

			status := waitForState(tracker, job.ID, jobs.StateCanceled, time.Second)

			convey.Convey("Then the job should finish canceled, keeping imported rows", func() {
				convey.So(status.State, convey.ShouldEqual, jobs.StateCanceled)
				convey.So(status.Progress.RowsImported, convey.ShouldBeLessThan, 6)
				convey.So(log.has(events.ImportCanceled), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the job is canceled before a worker picks it up", func() {
			close(store.gate)
			job := jobs.NewImport(ctx, path, jobs.Options{})
			tracker.Track(job)
			_, err := tracker.Cancel(job.ID)
			convey.So(err, convey.ShouldBeNil)
			q.addJob(job)

			// Give the worker time to dequeue and skip it
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then the worker should skip it without importing", func() {
				status, serr := tracker.Status(job.ID)
				convey.So(serr, convey.ShouldBeNil)
				convey.So(status.State, convey.ShouldEqual, jobs.StateCanceled)
				convey.So(store.count(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker pool", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		q := newMockQueue()
		store := newMockStore()
		tracker := jobs.NewTracker()
		deps := worker.Deps{Store: store, Tracker: tracker}

		convey.Convey("When creating a worker pool with default count", func() {
			pool := worker.NewPool(0, q, deps)

			convey.Convey("Then it should fall back to the default size", func() {
				convey.So(pool, convey.ShouldNotBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When creating a worker pool with custom count", func() {
			pool := worker.NewPool(3, q, deps)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(pool, convey.ShouldNotBeNil)
				convey.So(pool.Size(), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When starting a worker pool", func() {
			pool := worker.NewPool(2, q, deps)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)

			convey.Convey("And when processing multiple import jobs", func() {
				var ids []string
				for i := 0; i < 3; i++ {
					path := writeCSV(t,
						fmt.Sprintf("2023-03-11,Player%d,Level 25 Crypt,Fire Chest,%d,MY_CLAN", i, 100+i),
					)
					job := jobs.NewImport(ctx, path, jobs.Options{})
					tracker.Track(job)
					q.addJob(job)
					ids = append(ids, job.ID)
				}

				convey.Convey("Then all jobs should complete", func() {
					for _, id := range ids {
						status := waitForState(tracker, id, jobs.StateCompleted, time.Second)
						convey.So(status.State, convey.ShouldEqual, jobs.StateCompleted)
					}
					convey.So(store.count(), convey.ShouldEqual, 3)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
				defer shutdownCancel()

				err := pool.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When stopping a worker pool", func() {
			pool := worker.NewPool(2, q, deps)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)
			pool.Stop()

			convey.Convey("Then the queue should be closed", func() {
				_, open := <-q.jobChan
				convey.So(open, convey.ShouldBeFalse)
			})
		})
	})
}

func TestWorkerErrorHandling(t *testing.T) {
	convey.Convey("Given a worker with error conditions", t, func() {
		// Initialize logging for tests
		_ = logging.Init()

		q := newMockQueue()
		store := newMockStore()
		tracker := jobs.NewTracker()
		deduper := dedupe.NewInMemoryDeduper()
		deps := worker.Deps{Store: store, Tracker: tracker, Deduper: deduper}

		w := worker.NewInMemoryWorker(q, deps)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Start worker in goroutine
		go w.Run(ctx)

		convey.Convey("When the store rejects a batch", func() {
			store.addErr = errors.New("store unavailable")

			path := writeCSV(t,
				"2023-03-11,Feldjäger,Level 25 Crypt,Fire Chest,275,MY_CLAN",
			)
			job := jobs.NewImport(ctx, path, jobs.Options{})
			tracker.Track(job)
			q.addJob(job)

			status := waitForState(tracker, job.ID, jobs.StateFailed, time.Second)

			convey.Convey("Then the job should fail", func() {
				convey.So(status.State, convey.ShouldEqual, jobs.StateFailed)
				convey.So(status.Error, convey.ShouldContainSubstring, "store unavailable")
			})

			convey.Convey("Then the content keys should be released for re-import", func() {
				store.mu.Lock()
				store.addErr = nil
				store.mu.Unlock()

				retry := jobs.NewImport(ctx, path, jobs.Options{})
				tracker.Track(retry)
				q.addJob(retry)

				retryStatus := waitForState(tracker, retry.ID, jobs.StateCompleted, time.Second)
				convey.So(retryStatus.State, convey.ShouldEqual, jobs.StateCompleted)
				convey.So(retryStatus.Progress.Duplicates, convey.ShouldEqual, 0)
				convey.So(retryStatus.Progress.RowsImported, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When queue channel is closed", func() {
			// Close the queue
			_ = q.Close()

			convey.Convey("Then the worker should stop", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

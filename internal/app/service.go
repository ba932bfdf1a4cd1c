// Package service wires the chest tracking pipeline together: storage,
// dedupe, validation, correction, the import queue and its workers. It is
// the only layer transports talk to.
package service

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/mq/queue"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/mq/worker"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/dedupe"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/domain/validation"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultWorkerCount      = 4
	defaultQueueSize        = 64
	defaultDedupeSize       = 100_000
	defaultChunkSize        = 200
	defaultFuzzyThreshold   = 0.85
	defaultSnapshotInterval = 30 * time.Second
)

// Service owns the components of the chest tracking pipeline and exposes
// the operations transports call. Components are built in Start and torn
// down in Stop.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	deduper   dedupe.Deduper
	jobQueue  queue.Queue
	validator *validation.ListValidator
	corrector *correction.RuleCorrector
	tracker   *jobs.Tracker
	bus       *events.Bus
	pool      *worker.Pool
	history   *archive.Archive
	watcher   *validation.Watcher

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	chunkSize        int
	listsDir         string
	rulesFile        string
	archivePath      string
	fuzzyThreshold   float64
	caseSensitive    bool
	autoValidate     bool
	autoCorrect      bool
	watchLists       bool
	snapshotInterval time.Duration

	// State
	started bool
	stopCh  chan struct{}

	// Outcome of the most recent full validation pass.
	lastValidation   validation.Summary
	hasValidationRun bool

	// Logging
	logger logger.Logger
}

// Option configures the service.
type Option func(*Service)

// WithWorkerCount sets the number of import workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithQueueSize sets the import queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithDedupeSize sets the maximum number of row content keys remembered
// across imports.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithChunkSize sets how many CSV rows an import processes per chunk.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithListsDir sets the directory holding the reference list files.
// Empty disables list loading and watching.
func WithListsDir(dir string) Option {
	return func(s *Service) {
		s.listsDir = dir
	}
}

// WithRulesFile sets the CSV file holding correction rules.
// Empty disables rule loading and persistence.
func WithRulesFile(path string) Option {
	return func(s *Service) {
		s.rulesFile = path
	}
}

// WithArchivePath sets the SQLite file recording import history.
// Empty disables archiving.
func WithArchivePath(path string) Option {
	return func(s *Service) {
		s.archivePath = path
	}
}

// WithFuzzyThreshold sets the similarity threshold for fuzzy list matches.
func WithFuzzyThreshold(t float64) Option {
	return func(s *Service) {
		if t >= 0 && t <= 1 {
			s.fuzzyThreshold = t
		}
	}
}

// WithCaseSensitive controls whether list validation and correction rule
// matching are case sensitive.
func WithCaseSensitive(enabled bool) Option {
	return func(s *Service) {
		s.caseSensitive = enabled
	}
}

// WithAutoValidate controls whether imports validate rows by default.
func WithAutoValidate(enabled bool) Option {
	return func(s *Service) {
		s.autoValidate = enabled
	}
}

// WithAutoCorrect controls whether imports apply correction rules by
// default.
func WithAutoCorrect(enabled bool) Option {
	return func(s *Service) {
		s.autoCorrect = enabled
	}
}

// WithWatchLists controls whether the lists directory is watched for
// changes.
func WithWatchLists(enabled bool) Option {
	return func(s *Service) {
		s.watchLists = enabled
	}
}

// WithSnapshotInterval sets how often the repository publishes a fresh
// ranking snapshot.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.snapshotInterval = d
		}
	}
}

// WithLogger sets the logger used by the service and its components.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		s.logger = log
	}
}

// New creates a service with the given options.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      defaultWorkerCount,
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		chunkSize:        defaultChunkSize,
		fuzzyThreshold:   defaultFuzzyThreshold,
		autoValidate:     true,
		autoCorrect:      true,
		watchLists:       true,
		snapshotInterval: defaultSnapshotInterval,
		stopCh:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the pipeline components and starts the import workers.
// Calling Start on a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting service",
		logger.Int("worker_count", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("chunk_size", s.chunkSize),
	)

	s.stopCh = make(chan struct{})

	s.store = repository.NewTreapStore(ctx,
		repository.WithSnapshotInterval(s.snapshotInterval),
	)
	s.logger.Info(ctx, "using treap store")

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.jobQueue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.tracker = jobs.NewTracker()
	s.bus = events.NewBus()

	s.validator = validation.New(
		validation.WithLists(s.loadLists(ctx)),
		validation.WithThreshold(s.fuzzyThreshold),
		validation.WithCaseSensitive(s.caseSensitive),
	)
	s.corrector = correction.New(
		correction.WithRules(s.loadRules(ctx)),
		correction.WithCaseInsensitive(!s.caseSensitive),
	)

	if s.archivePath != "" {
		history, err := archive.Open(s.archivePath)
		if err != nil {
			s.logger.Warn(ctx, "import history disabled",
				logger.String("path", s.archivePath),
				logger.Error(err),
			)
		} else {
			s.history = history
			s.logger.Info(ctx, "import history enabled", logger.String("path", s.archivePath))
		}
	}

	deps := worker.Deps{
		Store:     s.store,
		Tracker:   s.tracker,
		Deduper:   s.deduper,
		Corrector: s.corrector,
		Validator: s.validator,
		Bus:       s.bus,
	}
	// Assign only a live archive. A nil *Archive in the interface field
	// would defeat the workers' nil check.
	if s.history != nil {
		deps.Archiver = s.history
	}
	s.pool = worker.NewPool(s.workerCount, s.jobQueue, deps, worker.WithChunkSize(s.chunkSize))
	s.pool.Start(ctx)

	if s.watchLists && s.listsDir != "" {
		watcher, err := validation.NewWatcher(s.listsDir, csvio.ReadListFile, s.applyListReload,
			validation.WithWatcherLogger(s.logger.Named("list-watcher")),
		)
		if err == nil {
			err = watcher.Start(ctx)
		}
		if err != nil {
			s.logger.Warn(ctx, "list watching disabled",
				logger.String("dir", s.listsDir),
				logger.Error(err),
			)
		} else {
			s.watcher = watcher
		}
	}

	s.started = true
	s.logger.Info(ctx, "service started")

	return nil
}

// Stop shuts the pipeline down: workers finish between chunks, the queue
// closes, and the history database is closed last.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping service")

	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}

	if s.pool != nil {
		s.pool.Stop()
	}

	if s.jobQueue != nil {
		if err := s.jobQueue.Close(); err != nil {
			s.logger.Error(ctx, "error closing import queue", logger.Error(err))
		}
	}

	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error(ctx, "error closing store", logger.Error(err))
		}
	}

	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Error(ctx, "error closing import history", logger.Error(err))
		}
		s.history = nil
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "service stopped")
}

// Bus exposes the event bus so callers can observe pipeline events.
func (s *Service) Bus() *events.Bus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bus
}

// loadLists reads the reference lists from the configured directory.
// Missing files mean empty lists; a fresh install starts with nothing.
func (s *Service) loadLists(ctx context.Context) *validation.ListSet {
	lists := validation.NewListSet()
	if s.listsDir == "" {
		return lists
	}

	for _, field := range model.Fields() {
		path := filepath.Join(s.listsDir, validation.ListFileName(field))
		entries, err := csvio.ReadListFile(path)
		if err != nil {
			s.logger.Warn(ctx, "skipping reference list",
				logger.String("path", path),
				logger.Error(err),
			)
			continue
		}
		if len(entries) == 0 {
			continue
		}
		lists = lists.WithEntries(field, entries)
		s.logger.Info(ctx, "loaded reference list",
			logger.String("path", path),
			logger.Int("entries", len(entries)),
		)
	}

	return lists
}

// loadRules reads correction rules from the configured file. A missing
// file means no rules yet.
func (s *Service) loadRules(ctx context.Context) []correction.Rule {
	if s.rulesFile == "" {
		return nil
	}

	rules, err := csvio.ReadRuleFile(s.rulesFile)
	if err != nil {
		s.logger.Warn(ctx, "skipping correction rules",
			logger.String("path", s.rulesFile),
			logger.Error(err),
		)
		return nil
	}
	if len(rules) > 0 {
		s.logger.Info(ctx, "loaded correction rules",
			logger.String("path", s.rulesFile),
			logger.Int("rules", len(rules)),
		)
	}

	return rules
}

// applyListReload swaps one reference list after its file changed on disk.
// Runs on the watcher goroutine without taking s.mu: everything it reads
// is set before the watcher starts and stays put until the watcher stops.
func (s *Service) applyListReload(field model.Field, entries []string) {
	s.validator.ReplaceLists(s.validator.Lists().WithEntries(field, entries))

	kind := kindForField(field)
	path := filepath.Join(s.listsDir, validation.ListFileName(field))
	metrics.RecordListReload(kind)
	s.bus.Publish(events.NewListsReloadedEvent(kind, path, len(entries)))
	s.logger.Info(context.Background(), "reference list reloaded",
		logger.String("kind", kind),
		logger.Int("entries", len(entries)),
	)
}

// GetStats returns current service statistics.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"worker_count": s.workerCount,
		"queue_size":   s.queueSize,
	}

	if s.store != nil {
		stats["records"] = s.store.Count(ctx)
		stats["players"] = s.store.PlayerCount(ctx)
		snap := s.store.Snapshot()
		if !snap.PublishedAt.IsZero() {
			stats["snapshot_age_seconds"] = time.Since(snap.PublishedAt).Seconds()
		}
	}
	if s.jobQueue != nil {
		queueLen := s.jobQueue.Len(ctx)
		stats["queue_length"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	if s.tracker != nil {
		stats["imports_in_flight"] = s.tracker.InFlight()
	}
	if s.deduper != nil {
		stats["dedupe_size"] = s.deduper.Size()
	}
	if s.pool != nil {
		stats["workers"] = s.pool.Size()
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	if s.corrector != nil {
		stats["correction_rules"] = len(s.corrector.Rules())
	}
	if s.validator != nil {
		stats["list_entries"] = s.validator.Lists().Total()
	}
	if s.hasValidationRun {
		stats["last_validation"] = s.lastValidation
	}
	if s.history != nil {
		if archiveStats, err := s.history.Stats(ctx); err == nil {
			stats["archive"] = archiveStats
		}
	}

	return stats
}

// kindForField maps a validated field to its public list kind.
func kindForField(f model.Field) string {
	switch f {
	case model.FieldPlayer:
		return "players"
	case model.FieldChestType:
		return "chest_types"
	case model.FieldSource:
		return "sources"
	default:
		return string(f)
	}
}

// fieldForKind maps a public list kind to its validated field.
func fieldForKind(kind string) (model.Field, bool) {
	switch kind {
	case "players":
		return model.FieldPlayer, true
	case "chest_types":
		return model.FieldChestType, true
	case "sources":
		return model.FieldSource, true
	default:
		return "", false
	}
}

// ListKinds enumerates the reference list kinds in canonical order.
func ListKinds() []string {
	return []string{"players", "chest_types", "sources"}
}

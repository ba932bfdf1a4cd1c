package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Records live in a map keyed by ID; the player leaderboard derived from
// them lives in a treap ordered by total DESC, then player ASC
// (deterministic). "Less" in the BST comparator means ranks earlier, so
// in-order traversal produces the leaderboard from best to worst. Every
// mutation that touches a player's total deletes and reinserts that
// player's treap node.

// playerTotal accumulates one player's chest totals.
type playerTotal struct {
	total  int
	chests int
}

// Aggregate accumulates a count and a value total for one grouping key.
type Aggregate struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

// Snapshot is an immutable view of the table state, published periodically
// for lock-free reads. Charts and stats are served from here.
type Snapshot struct {
	// Rank and total in O(1) for reads
	RankByPlayer  map[string]int
	TotalByPlayer map[string]int

	// Fast Top-K cache up to M items, sorted descending
	TopCache []Entry

	// Grouped aggregates for chart series. ByDate is keyed by the ISO
	// date string, so lexicographic order is chronological order.
	ByChestType map[string]Aggregate
	BySource    map[string]Aggregate
	ByDate      map[string]Aggregate

	Records int
	Players int

	PublishedAt time.Time
}

// treap node
type node struct {
	player string
	total  int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aTotal, aPlayer) should appear before
// (bTotal, bPlayer) in the leaderboard (higher totals first).
func less(aTotal int, aPlayer string, bTotal int, bPlayer string) bool {
	if aTotal != bTotal {
		return aTotal > bTotal // higher total ranks earlier
	}
	return aPlayer < bPlayer // tie-breaker by player asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// totalToPriority converts a total to a treap priority. Higher totals get
// higher priorities to keep them near the root, since top-N is the hot
// query. Negative totals cannot occur (values are non-negative), but the
// offset keeps the mapping monotonic regardless.
func totalToPriority(total int) uint64 {
	const offset = uint64(1) << 63
	return uint64(int64(total)) + offset
}

func insert(n *node, player string, total int) *node {
	if n == nil {
		return &node{player: player, total: total, prio: totalToPriority(total), size: 1}
	}
	if less(total, player, n.total, n.player) {
		n.left = insert(n.left, player, total)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, player, total)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, player string, total int) *node {
	if n == nil {
		return nil
	}
	if total == n.total && player == n.player {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, player, total)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, player, total)
		}
	} else if less(total, player, n.total, n.player) {
		n.left = deleteNode(n.left, player, total)
	} else {
		n.right = deleteNode(n.right, player, total)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (highest totals
// first). In-order traversal with early exit once the limit is reached.
func collectTopN(n *node, limit int, byPlayer map[string]playerTotal, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, byPlayer, out)

	if len(*out) < limit {
		if pt, exists := byPlayer[n.player]; exists {
			*out = append(*out, Entry{Player: n.player, Total: pt.total, Chests: pt.chests})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, byPlayer, out)
	}
}

// collectAll appends all entries in rank order (highest totals first).
func collectAll(n *node, byPlayer map[string]playerTotal, out *[]Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byPlayer, out)
	if pt, ok := byPlayer[n.player]; ok {
		*out = append(*out, Entry{Player: n.player, Total: pt.total, Chests: pt.chests})
	}
	collectAll(n.right, byPlayer, out)
}

// assignRanksWithTies assigns ranks with proper tie handling. Players with
// the same total share a rank and the next distinct total takes the next
// consecutive rank.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameTotalCount := 1
		for j := i + 1; j < len(entries) && entries[j].Total == entries[i].Total; j++ {
			entries[j].Rank = currentRank
			sameTotalCount++
		}

		currentRank++
		i += sameTotalCount - 1
	}
}

// TreapStore keeps chest records and the derived player leaderboard in
// memory.
type TreapStore struct {
	mu       sync.RWMutex
	records  map[string]model.Record
	byPlayer map[string]playerTotal
	root     *node

	// seq preserves insertion order for List; edits keep their position.
	seq     map[string]uint64
	nextSeq uint64

	snapshotInterval      time.Duration
	metricsUpdateInterval time.Duration
	topCacheSize          int

	// snapshot is an atomic pointer to the latest published Snapshot
	snapshot atomic.Pointer[Snapshot]

	// Background goroutine management
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval:      30 * time.Second, // default snapshot interval
		metricsUpdateInterval: 5 * time.Second,  // default metrics interval
		topCacheSize:          500,              // default top cache size
		records:               make(map[string]model.Record),
		byPlayer:              make(map[string]playerTotal),
		seq:                   make(map[string]uint64),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	// Publish an empty snapshot so readers never see nil
	s.publishSnapshot()

	// Initialize stop channel and start background goroutines
	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)
	s.startMetricsUpdater(ctx)

	return s
}

// startPeriodicSnapshots starts a background goroutine that publishes
// snapshots at the configured interval.
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

// publishSnapshot rebuilds and publishes a new snapshot.
func (s *TreapStore) publishSnapshot() {
	start := time.Now()
	s.mu.RLock()
	s.publishSnapshotLocked()
	s.mu.RUnlock()

	ms := float64(time.Since(start).Milliseconds())
	metrics.RecordRepositorySnapshotRebuildDuration(ms)
	metrics.UpdateRepositorySnapshotLastDurationMs(ms)
	metrics.UpdateRepositorySnapshotLastUnix(float64(time.Now().Unix()))
	metrics.IncrementRepositorySnapshotCount()
}

// publishSnapshotLocked rebuilds and publishes a new snapshot. Callers must
// hold at least the read lock.
func (s *TreapStore) publishSnapshotLocked() {
	// Top-M cache for fast dashboard queries
	topCache := make([]Entry, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, s.byPlayer, &topCache)

	rankByPlayer := make(map[string]int, len(s.byPlayer))
	totalByPlayer := make(map[string]int, len(s.byPlayer))

	// In-order traversal is already rank order; compute global ranks once
	allEntries := make([]Entry, 0, len(s.byPlayer))
	collectAll(s.root, s.byPlayer, &allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		rankByPlayer[entry.Player] = entry.Rank
		totalByPlayer[entry.Player] = entry.Total
	}

	for i := range topCache {
		if rank, exists := rankByPlayer[topCache[i].Player]; exists {
			topCache[i].Rank = rank
		}
	}

	// Grouped aggregates for chart series
	byChestType := make(map[string]Aggregate)
	bySource := make(map[string]Aggregate)
	byDate := make(map[string]Aggregate)
	for _, rec := range s.records {
		ct := byChestType[rec.ChestType]
		ct.Count++
		ct.Total += rec.Value
		byChestType[rec.ChestType] = ct

		src := bySource[rec.Source]
		src.Count++
		src.Total += rec.Value
		bySource[rec.Source] = src

		day := byDate[rec.Date.String()]
		day.Count++
		day.Total += rec.Value
		byDate[rec.Date.String()] = day
	}

	s.snapshot.Store(&Snapshot{
		RankByPlayer:  rankByPlayer,
		TotalByPlayer: totalByPlayer,
		TopCache:      topCache,
		ByChestType:   byChestType,
		BySource:      bySource,
		ByDate:        byDate,
		Records:       len(s.records),
		Players:       len(s.byPlayer),
		PublishedAt:   time.Now(),
	})
}

// Snapshot returns the latest published table snapshot.
func (s *TreapStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// RefreshSnapshot rebuilds and publishes the snapshot immediately. Called
// after bulk mutations so charts do not wait out the periodic interval.
func (s *TreapStore) RefreshSnapshot() {
	s.publishSnapshot()
}

// Close gracefully shuts down the background goroutines.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
		// Channel already closed
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Add inserts a record in O(log n) expected time.
func (s *TreapStore) Add(ctx context.Context, rec model.Record) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	if _, ok := s.records[rec.ID]; ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "duplicate_id")
		return ErrDuplicateID
	}
	s.insertLocked(rec)
	s.mu.Unlock()

	s.updateSizeMetrics(ctx)
	return nil
}

// AddBatch inserts a chunk of records under one lock, skipping IDs that
// are already present.
func (s *TreapStore) AddBatch(ctx context.Context, recs []model.Record) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	added := 0
	s.mu.Lock()
	for _, rec := range recs {
		if _, ok := s.records[rec.ID]; ok {
			continue
		}
		s.insertLocked(rec)
		added++
	}
	s.mu.Unlock()

	s.updateSizeMetrics(ctx)
	return added, nil
}

// Get returns the record with the given id.
func (s *TreapStore) Get(ctx context.Context, id string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Record{}, ErrNotFound
	}
	return rec, nil
}

// Update replaces a stored record wholesale in O(log n) expected time.
func (s *TreapStore) Update(ctx context.Context, rec model.Record) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	old, ok := s.records[rec.ID]
	if !ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "not_found")
		return ErrNotFound
	}
	s.replaceLocked(old, rec)
	s.mu.Unlock()

	s.updateSizeMetrics(ctx)
	return nil
}

// UpdateCells applies a sparse cell edit to a stored record. The edited
// record drops back to pending validation since its content changed.
func (s *TreapStore) UpdateCells(ctx context.Context, id string, edits model.CellEdits) (model.Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Record{}, ErrNotFound
	}
	if edits.Empty() {
		return old, nil
	}

	next := old
	if err := edits.Apply(&next); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_edit")
		return model.Record{}, err
	}
	next.Validation = model.ValidationState{Status: model.StatusPending}

	s.replaceLocked(old, next)
	return next, nil
}

// Delete removes the record with the given id in O(log n) expected time.
func (s *TreapStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("repository", "not_found")
		return ErrNotFound
	}
	delete(s.records, id)
	delete(s.seq, id)
	s.bumpPlayerLocked(rec.Player, -rec.Value, -1)
	s.mu.Unlock()

	s.updateSizeMetrics(ctx)
	return nil
}

// Clear removes every record and publishes a fresh snapshot.
func (s *TreapStore) Clear(ctx context.Context) int {
	s.mu.Lock()
	dropped := len(s.records)
	s.records = make(map[string]model.Record)
	s.byPlayer = make(map[string]playerTotal)
	s.seq = make(map[string]uint64)
	s.nextSeq = 0
	s.root = nil
	s.publishSnapshotLocked()
	s.mu.Unlock()

	s.updateSizeMetrics(ctx)
	return dropped
}

// List returns records matching the query in insertion order.
func (s *TreapStore) List(ctx context.Context, q ListQuery) ([]model.Record, int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	type seqRecord struct {
		seq uint64
		rec model.Record
	}

	s.mu.RLock()
	matched := make([]seqRecord, 0, len(s.records))
	for id, rec := range s.records {
		if !q.matches(rec) {
			continue
		}
		matched = append(matched, seqRecord{seq: s.seq[id], rec: rec})
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].seq < matched[j].seq
	})

	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= total {
			return []model.Record{}, total, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	out := make([]model.Record, len(matched))
	for i, m := range matched {
		out[i] = m.rec
	}
	return out, total, nil
}

// Count returns the total number of records.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// TopPlayers returns the top N players ordered by total desc.
func (s *TreapStore) TopPlayers(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, n)
	collectTopN(s.root, n, s.byPlayer, &out)

	// The slice is a prefix of the full rank order, so ranks assigned here
	// match the global ranks for every included player.
	assignRanksWithTies(out)
	return out, nil
}

// PlayerRank returns the current rank and totals for a player in O(n).
func (s *TreapStore) PlayerRank(ctx context.Context, player string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byPlayer[player]; !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	allEntries := make([]Entry, 0, len(s.byPlayer))
	collectAll(s.root, s.byPlayer, &allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		if entry.Player == player {
			return entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// PlayerCount returns the number of players on the leaderboard.
func (s *TreapStore) PlayerCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPlayer)
}

// insertLocked stores a record and feeds its value into the player totals.
// Callers must hold the write lock.
func (s *TreapStore) insertLocked(rec model.Record) {
	s.records[rec.ID] = rec
	s.nextSeq++
	s.seq[rec.ID] = s.nextSeq
	s.bumpPlayerLocked(rec.Player, rec.Value, 1)
}

// replaceLocked swaps a stored record and rebalances totals when the
// player or value changed. Callers must hold the write lock.
func (s *TreapStore) replaceLocked(old, next model.Record) {
	s.records[next.ID] = next
	if old.Player != next.Player || old.Value != next.Value {
		s.bumpPlayerLocked(old.Player, -old.Value, -1)
		s.bumpPlayerLocked(next.Player, next.Value, 1)
	}
}

// bumpPlayerLocked adjusts a player's totals by delete-and-reinsert of
// their treap node. Callers must hold the write lock.
func (s *TreapStore) bumpPlayerLocked(player string, deltaTotal, deltaChests int) {
	old, ok := s.byPlayer[player]
	if ok {
		s.root = deleteNode(s.root, player, old.total)
	}

	next := playerTotal{total: old.total + deltaTotal, chests: old.chests + deltaChests}
	if next.chests <= 0 {
		delete(s.byPlayer, player)
		return
	}
	s.byPlayer[player] = next
	s.root = insert(s.root, player, next.total)
}

// updateSizeMetrics refreshes the record and player gauges outside locks.
func (s *TreapStore) updateSizeMetrics(ctx context.Context) {
	metrics.UpdateRepositoryRecordsTotal(s.Count(ctx))
	metrics.UpdateRepositoryPlayersTotal(s.PlayerCount(ctx))
}

// startMetricsUpdater starts a background goroutine that refreshes
// repository gauges at the configured interval.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateSizeMetrics(ctx)
			}
		}
	}()
}

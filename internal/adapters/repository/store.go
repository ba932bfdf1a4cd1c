// Package repository defines the chest record store interface and errors.
package repository

import (
	"context"
	"strings"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// Entry represents a player leaderboard row.
type Entry struct {
	Rank   int
	Player string
	Total  int
	Chests int
}

// ListQuery selects and pages records out of the store. String filters
// left empty match everything; Source matches as a case-insensitive
// substring, the rest match exactly.
type ListQuery struct {
	Offset    int
	Limit     int // 0 means no limit
	Player    string
	ChestType string
	Clan      string
	Source    string
	From      model.Date // inclusive lower date bound, zero matches all
	To        model.Date // inclusive upper date bound, zero matches all
	Status    model.ValidationStatus
}

// matches reports whether a record passes every set filter.
func (q ListQuery) matches(rec model.Record) bool {
	if q.Player != "" && rec.Player != q.Player {
		return false
	}
	if q.ChestType != "" && rec.ChestType != q.ChestType {
		return false
	}
	if q.Clan != "" && rec.Clan != q.Clan {
		return false
	}
	if q.Source != "" && !strings.Contains(strings.ToLower(rec.Source), strings.ToLower(q.Source)) {
		return false
	}
	if !q.From.IsZero() && rec.Date.Before(q.From.Time) {
		return false
	}
	if !q.To.IsZero() && rec.Date.After(q.To.Time) {
		return false
	}
	if q.Status != "" && rec.Validation.Status != q.Status {
		return false
	}
	return true
}

// Store provides read/write access to the record table and the player
// leaderboard derived from it.
type Store interface {
	// Add inserts a record. Returns ErrDuplicateID when the ID is taken.
	Add(ctx context.Context, rec model.Record) error

	// AddBatch inserts a chunk of records under one lock, skipping records
	// whose ID is already present. Returns how many were inserted.
	AddBatch(ctx context.Context, recs []model.Record) (int, error)

	// Get returns the record with the given id.
	// Returns ErrNotFound if the record is unknown.
	Get(ctx context.Context, id string) (model.Record, error)

	// Update replaces a stored record wholesale, keyed by its ID.
	Update(ctx context.Context, rec model.Record) error

	// UpdateCells applies a sparse cell edit to a stored record and returns
	// the updated record. Edited records drop back to pending validation.
	UpdateCells(ctx context.Context, id string, edits model.CellEdits) (model.Record, error)

	// Delete removes the record with the given id.
	Delete(ctx context.Context, id string) error

	// Clear removes every record and returns how many were dropped.
	Clear(ctx context.Context) int

	// List returns records matching the query in insertion order, plus the
	// total match count before paging.
	List(ctx context.Context, q ListQuery) ([]model.Record, int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int

	// TopPlayers returns the top-N players ordered by total value desc.
	TopPlayers(ctx context.Context, n int) ([]Entry, error)

	// PlayerRank returns the current rank and totals for a player.
	// Returns ErrNotFound if the player has no records.
	PlayerRank(ctx context.Context, player string) (Entry, error)

	// PlayerCount returns the number of players on the leaderboard.
	PlayerCount(ctx context.Context) int

	// Snapshot returns the latest published table snapshot for lock-free
	// reads. Never nil once the store is constructed.
	Snapshot() *Snapshot

	// RefreshSnapshot rebuilds and publishes the snapshot immediately,
	// ahead of the periodic schedule. Call after bulk mutations.
	RefreshSnapshot()
}

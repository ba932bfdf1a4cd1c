package service

import (
	"context"
	"io"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// Records lists records matching the query in insertion order, together
// with the total match count before offset and limit.
func (s *Service) Records(ctx context.Context, q repository.ListQuery) ([]model.Record, int, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, 0, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	return store.List(ctx, q)
}

// Record returns one record by ID.
func (s *Service) Record(ctx context.Context, id string) (model.Record, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return model.Record{}, ErrNotStarted
	}
	store := s.store
	s.mu.RUnlock()

	return store.Get(ctx, id)
}

// UpdateRecord applies sparse cell edits to one record. The updated record
// drops back to pending validation, and the dedupe index follows the new
// row content so a re-import of the old row is seen as new again.
func (s *Service) UpdateRecord(ctx context.Context, id string, edits model.CellEdits) (model.Record, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return model.Record{}, ErrNotStarted
	}
	store, deduper, bus := s.store, s.deduper, s.bus
	s.mu.RUnlock()

	old, err := store.Get(ctx, id)
	if err != nil {
		return model.Record{}, err
	}

	updated, err := store.UpdateCells(ctx, id, edits)
	if err != nil {
		return model.Record{}, err
	}

	if oldKey, newKey := old.ContentKey(), updated.ContentKey(); oldKey != newKey {
		deduper.Unrecord(ctx, oldKey)
		deduper.SeenAndRecord(ctx, newKey)
	}
	store.RefreshSnapshot()

	bus.Publish(events.NewRecordsUpdatedEvent(id, editedColumns(edits)))
	s.logger.Debug(ctx, "record updated", logger.String("record_id", id))

	return updated, nil
}

// DeleteRecord removes one record and forgets its row content, so the same
// row can be imported again later.
func (s *Service) DeleteRecord(ctx context.Context, id string) error {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return ErrNotStarted
	}
	store, deduper, bus := s.store, s.deduper, s.bus
	s.mu.RUnlock()

	old, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}

	deduper.Unrecord(ctx, old.ContentKey())
	store.RefreshSnapshot()

	bus.Publish(events.NewRecordsDeletedEvent(id))
	s.logger.Debug(ctx, "record deleted", logger.String("record_id", id))

	return nil
}

// ClearRecords drops every record and resets the dedupe index. Returns the
// number of records dropped.
func (s *Service) ClearRecords(ctx context.Context) (int, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return 0, ErrNotStarted
	}
	store, deduper, bus := s.store, s.deduper, s.bus
	s.mu.RUnlock()

	dropped := store.Clear(ctx)
	deduper.Clear(ctx)
	store.RefreshSnapshot()

	bus.Publish(events.NewRecordsClearedEvent(dropped))
	s.logger.Info(ctx, "records cleared", logger.Int("dropped", dropped))

	return dropped, nil
}

// ExportCSV streams records matching the query as canonical CSV. Returns
// the number of records written.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, q repository.ListQuery, withBOM bool) (int, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return 0, ErrNotStarted
	}
	store, bus := s.store, s.bus
	s.mu.RUnlock()

	recs, _, err := store.List(ctx, q)
	if err != nil {
		return 0, err
	}

	cw := csvio.NewWriter(w, csvio.WithBOM(withBOM))
	if err := cw.WriteAll(recs); err != nil {
		return 0, err
	}
	if err := cw.Flush(); err != nil {
		return 0, err
	}

	bus.Publish(events.NewExportCompletedEvent("stream", len(recs)))

	return len(recs), nil
}

// ExportFile writes records matching the query to a CSV file. Returns the
// number of records written.
func (s *Service) ExportFile(ctx context.Context, path string, q repository.ListQuery, withBOM bool) (int, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return 0, ErrNotStarted
	}
	store, bus := s.store, s.bus
	s.mu.RUnlock()

	recs, _, err := store.List(ctx, q)
	if err != nil {
		return 0, err
	}
	if err := csvio.WriteFile(path, recs, csvio.WithBOM(withBOM)); err != nil {
		return 0, err
	}

	bus.Publish(events.NewExportCompletedEvent(path, len(recs)))
	s.logger.Info(ctx, "records exported",
		logger.String("path", path),
		logger.Int("records", len(recs)),
	)

	return len(recs), nil
}

// editedColumns names the columns a sparse edit touches, for change
// notifications.
func editedColumns(e model.CellEdits) []string {
	var cols []string
	if e.Date != nil {
		cols = append(cols, "date")
	}
	if e.Player != nil {
		cols = append(cols, "player")
	}
	if e.Source != nil {
		cols = append(cols, "source")
	}
	if e.ChestType != nil {
		cols = append(cols, "chest_type")
	}
	if e.Value != nil {
		cols = append(cols, "value")
	}
	if e.Clan != nil {
		cols = append(cols, "clan")
	}
	return cols
}

package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/domain/validation"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

// ValidateAll runs a full validation pass over every stored record and
// persists the per-record outcomes. The summary of the pass is kept for
// LastValidation.
func (s *Service) ValidateAll(ctx context.Context) (validation.Summary, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return validation.Summary{}, ErrNotStarted
	}
	store, validator, bus, history := s.store, s.validator, s.bus, s.history
	s.mu.RUnlock()

	recs, _, err := store.List(ctx, repository.ListQuery{})
	if err != nil {
		return validation.Summary{}, err
	}

	prev := make([]model.ValidationState, len(recs))
	ptrs := make([]*model.Record, len(recs))
	for i := range recs {
		prev[i] = recs[i].Validation
		ptrs[i] = &recs[i]
	}

	summary := validator.ValidateAll(ctx, ptrs)

	for i := range recs {
		if !validationStateChanged(prev[i], recs[i].Validation) {
			continue
		}
		if err := store.Update(ctx, recs[i]); err != nil {
			s.logger.Warn(ctx, "persisting validation state",
				logger.String("record_id", recs[i].ID),
				logger.Error(err),
			)
		}
	}

	bus.Publish(events.NewValidationCompletedEvent(summary.Checked, summary.Invalid, summary.Duration))
	metrics.IncrementValidationRuns()
	metrics.RecordValidationLatency(float64(summary.Duration.Milliseconds()))
	metrics.UpdateValidationLastInvalid(summary.Invalid)

	if history != nil {
		run := archive.ValidationRun{
			Checked:      summary.Checked,
			Valid:        summary.Valid,
			Invalid:      summary.Invalid,
			FuzzyMatches: summary.FuzzyMatches,
			Duration:     summary.Duration,
		}
		if err := history.RecordValidationRun(ctx, run); err != nil {
			s.logger.Warn(ctx, "archiving validation run", logger.Error(err))
		}
	}

	s.mu.Lock()
	s.lastValidation = summary
	s.hasValidationRun = true
	s.mu.Unlock()

	s.logger.Info(ctx, "validation pass finished",
		logger.Int("checked", summary.Checked),
		logger.Int("invalid", summary.Invalid),
		logger.Duration("duration", summary.Duration),
	)

	return summary, nil
}

// LastValidation returns the summary of the most recent validation pass.
// The second return is false when no pass has run yet.
func (s *Service) LastValidation() (validation.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastValidation, s.hasValidationRun
}

// Suggestions returns the closest reference list entries for a value, best
// match first. The field is one of player, chest_type or source.
func (s *Service) Suggestions(field, value string) ([]validation.Suggestion, error) {
	f, err := model.ParseField(field)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	validator := s.validator
	s.mu.RUnlock()

	return validator.Suggest(f, value), nil
}

// ListEntries returns the entries of one reference list, sorted.
func (s *Service) ListEntries(kind string) ([]string, error) {
	field, ok := fieldForKind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownListKind, kind)
	}

	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	validator := s.validator
	s.mu.RUnlock()

	return validator.Lists().SortedEntries(field), nil
}

// AddListEntries adds entries to one reference list, persists the list
// file when a lists directory is configured, and returns the new entry
// count. Records are not revalidated; run ValidateAll for that.
func (s *Service) AddListEntries(ctx context.Context, kind string, entries []string) (int, error) {
	field, ok := fieldForKind(kind)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownListKind, kind)
	}

	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return 0, ErrNotStarted
	}
	validator, bus, listsDir := s.validator, s.bus, s.listsDir
	s.mu.RUnlock()

	lists := validator.Lists()
	for _, entry := range entries {
		lists = lists.WithEntry(field, entry)
	}
	validator.ReplaceLists(lists)
	count := lists.Len(field)

	if err := s.persistList(ctx, listsDir, field, lists); err != nil {
		return count, err
	}

	bus.Publish(events.NewListsUpdatedEvent(kind, count))
	s.logger.Info(ctx, "reference list updated",
		logger.String("kind", kind),
		logger.Int("entries", count),
	)

	return count, nil
}

// RemoveListEntry removes one entry from a reference list and persists the
// list file. Removing an absent entry is a no-op.
func (s *Service) RemoveListEntry(ctx context.Context, kind, entry string) (int, error) {
	field, ok := fieldForKind(kind)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownListKind, kind)
	}

	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return 0, ErrNotStarted
	}
	validator, bus, listsDir := s.validator, s.bus, s.listsDir
	s.mu.RUnlock()

	lists := validator.Lists().WithoutEntry(field, entry)
	validator.ReplaceLists(lists)
	count := lists.Len(field)

	if err := s.persistList(ctx, listsDir, field, lists); err != nil {
		return count, err
	}

	bus.Publish(events.NewListsUpdatedEvent(kind, count))

	return count, nil
}

// persistList writes one reference list back to its file. The watcher will
// notice the write and reload the same entries, which is harmless.
func (s *Service) persistList(ctx context.Context, listsDir string, field model.Field, lists *validation.ListSet) error {
	if listsDir == "" {
		return nil
	}
	path := filepath.Join(listsDir, validation.ListFileName(field))
	if err := csvio.WriteListFile(path, lists.SortedEntries(field)); err != nil {
		return fmt.Errorf("persisting %s list: %w", kindForField(field), err)
	}
	return nil
}

// validationStateChanged reports whether a validation pass altered a
// record's stored outcome.
func validationStateChanged(a, b model.ValidationState) bool {
	if a.Status != b.Status || len(a.Fields) != len(b.Fields) {
		return true
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

// Rules returns the current correction rules in priority order.
func (s *Service) Rules() ([]correction.Rule, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	corrector := s.corrector
	s.mu.RUnlock()

	return corrector.Rules(), nil
}

// AddRule appends a correction rule, assigns it an ID when empty, and
// persists the rule file.
func (s *Service) AddRule(ctx context.Context, rule correction.Rule) (correction.Rule, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return correction.Rule{}, ErrNotStarted
	}
	corrector := s.corrector
	s.mu.RUnlock()

	added, err := corrector.Add(rule)
	if err != nil {
		return correction.Rule{}, err
	}
	s.persistRules(ctx)

	return added, nil
}

// UpdateRule replaces a rule by ID, keeping its position, and persists the
// rule file.
func (s *Service) UpdateRule(ctx context.Context, id string, rule correction.Rule) (correction.Rule, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return correction.Rule{}, ErrNotStarted
	}
	corrector := s.corrector
	s.mu.RUnlock()

	updated, err := corrector.Update(id, rule)
	if err != nil {
		return correction.Rule{}, err
	}
	s.persistRules(ctx)

	return updated, nil
}

// RemoveRule deletes a rule by ID and persists the rule file.
func (s *Service) RemoveRule(ctx context.Context, id string) error {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return ErrNotStarted
	}
	corrector := s.corrector
	s.mu.RUnlock()

	if err := corrector.Remove(id); err != nil {
		return err
	}
	s.persistRules(ctx)

	return nil
}

// ApplyCorrections runs every enabled rule over every stored record.
// Corrected records are revalidated, their dedupe keys follow the new row
// content, and the changes land in the import history.
func (s *Service) ApplyCorrections(ctx context.Context) (correction.Summary, []correction.Change, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return correction.Summary{}, nil, ErrNotStarted
	}
	store, corrector, validator, deduper, bus, history := s.store, s.corrector, s.validator, s.deduper, s.bus, s.history
	s.mu.RUnlock()

	recs, _, err := store.List(ctx, repository.ListQuery{})
	if err != nil {
		return correction.Summary{}, nil, err
	}

	oldKeys := make([]string, len(recs))
	ptrs := make([]*model.Record, len(recs))
	for i := range recs {
		oldKeys[i] = recs[i].ContentKey()
		ptrs[i] = &recs[i]
	}

	summary, changes := corrector.ApplyAll(ctx, ptrs)
	if len(changes) == 0 {
		return summary, changes, nil
	}

	changedIDs := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		changedIDs[change.RecordID] = struct{}{}
	}

	for i := range recs {
		if _, ok := changedIDs[recs[i].ID]; !ok {
			continue
		}
		validator.Validate(ctx, &recs[i])
		if newKey := recs[i].ContentKey(); newKey != oldKeys[i] {
			deduper.Unrecord(ctx, oldKeys[i])
			deduper.SeenAndRecord(ctx, newKey)
		}
		if err := store.Update(ctx, recs[i]); err != nil {
			s.logger.Warn(ctx, "persisting corrected record",
				logger.String("record_id", recs[i].ID),
				logger.Error(err),
			)
		}
	}
	store.RefreshSnapshot()

	bus.Publish(events.NewCorrectionsAppliedEvent(summary.Records, len(changes)))
	metrics.RecordCorrectionsApplied(len(changes))

	if history != nil {
		now := time.Now()
		entries := make([]archive.CorrectionEntry, 0, len(changes))
		for _, change := range changes {
			entries = append(entries, archive.CorrectionEntry{
				RecordID:  change.RecordID,
				Field:     string(change.Field),
				From:      change.From,
				To:        change.To,
				RuleID:    change.RuleID,
				AppliedAt: now,
			})
		}
		if err := history.RecordCorrections(ctx, entries); err != nil {
			s.logger.Warn(ctx, "archiving corrections", logger.Error(err))
		}
	}

	s.logger.Info(ctx, "corrections applied",
		logger.Int("records", summary.Records),
		logger.Int("changes", len(changes)),
		logger.Duration("duration", summary.Duration),
	)

	return summary, changes, nil
}

// PreviewCorrections reports the changes a correction pass would make
// without touching any record.
func (s *Service) PreviewCorrections(ctx context.Context) ([]correction.Change, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return nil, ErrNotStarted
	}
	store, corrector := s.store, s.corrector
	s.mu.RUnlock()

	recs, _, err := store.List(ctx, repository.ListQuery{})
	if err != nil {
		return nil, err
	}

	ptrs := make([]*model.Record, len(recs))
	for i := range recs {
		ptrs[i] = &recs[i]
	}

	return corrector.Preview(ctx, ptrs), nil
}

// persistRules writes the current rules to the configured file and
// announces the change.
func (s *Service) persistRules(ctx context.Context) {
	s.mu.RLock()
	corrector, bus, rulesFile := s.corrector, s.bus, s.rulesFile
	s.mu.RUnlock()

	rules := corrector.Rules()
	if rulesFile != "" {
		if err := csvio.WriteRuleFile(rulesFile, rules); err != nil {
			s.logger.Warn(ctx, "persisting correction rules",
				logger.String("path", rulesFile),
				logger.Error(err),
			)
		}
	}
	bus.Publish(events.NewCorrectionRulesChangedEvent(len(rules)))
}

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/domain/validation"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// newValidator builds a list validator from the configured lists_dir.
// Missing list files mean empty lists, same as the server.
func newValidator(ctx context.Context) *validation.ListValidator {
	lists := validation.NewListSet()
	for _, field := range model.Fields() {
		path := filepath.Join(cfg.ListsDir, validation.ListFileName(field))
		entries, err := csvio.ReadListFile(path)
		if err != nil {
			logger.Get().Warn(ctx, "skipping reference list",
				logger.String("path", path),
				logger.Error(err),
			)
			continue
		}
		if len(entries) > 0 {
			lists = lists.WithEntries(field, entries)
		}
	}

	return validation.New(
		validation.WithLists(lists),
		validation.WithThreshold(cfg.FuzzyThreshold),
		validation.WithCaseSensitive(cfg.CaseSensitive),
	)
}

// newCorrector builds a rule corrector from the configured rules_file.
func newCorrector(ctx context.Context) *correction.RuleCorrector {
	var rules []correction.Rule
	if cfg.RulesFile != "" {
		loaded, err := csvio.ReadRuleFile(cfg.RulesFile)
		if err != nil {
			logger.Get().Warn(ctx, "skipping correction rules",
				logger.String("path", cfg.RulesFile),
				logger.Error(err),
			)
		} else {
			rules = loaded
		}
	}

	return correction.New(
		correction.WithRules(rules),
		correction.WithCaseInsensitive(!cfg.CaseSensitive),
	)
}

// readRecords parses one CSV file completely, returning the records, the
// rows that could not be parsed, and the detected source encoding.
func readRecords(ctx context.Context, path string) ([]model.Record, []csvio.RowError, csvio.Encoding, error) {
	reader, err := csvio.OpenFile(path)
	if err != nil {
		return nil, nil, "", err
	}
	defer reader.Close()

	recs, rowErrs, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	return recs, rowErrs, reader.Encoding(), nil
}

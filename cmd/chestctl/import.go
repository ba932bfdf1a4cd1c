package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/archive"
	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/domain/dedupe"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv> [file.csv ...]",
	Short: "Run the import pipeline over local CSV files",
	Long: `Runs the full import pipeline over local CSV files: encoding
detection, chunked parsing, duplicate removal by row content, correction
rules, then list validation. Input files are parsed concurrently and
merged in argument order.

Records failing list validation are kept and flagged, the same as a
server import. Without --out the pipeline runs for its report alone.

Examples:
  # Merge two exports, dropping duplicate rows
  chestctl import week12.csv week13.csv --out merged.csv

  # Check what an import would do
  chestctl import chests.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var importOut string

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "write the merged, corrected records to this file")
}

// fileImport is the parse result for one input file.
type fileImport struct {
	path     string
	records  []model.Record
	rowErrs  []csvio.RowError
	encoding csvio.Encoding

	// pipeline counts, filled while merging
	imported   int
	duplicates int
	corrected  int
	invalid    int
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	validator := newValidator(ctx)
	corrector := newCorrector(ctx)

	// Parse every input concurrently; merge order stays the argument order.
	files := make([]fileImport, len(args))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range args {
		g.Go(func() error {
			recs, rowErrs, enc, err := readRecords(gctx, path)
			if err != nil {
				return err
			}
			files[i] = fileImport{path: path, records: recs, rowErrs: rowErrs, encoding: enc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Duplicate detection spans all inputs: a row seen in the first file
	// is a duplicate in every later one.
	deduper := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	merged := make([]model.Record, 0)
	for i := range files {
		f := &files[i]
		for j := range f.records {
			rec := &f.records[j]
			if deduper.SeenAndRecord(ctx, rec.ContentKey()) {
				f.duplicates++
				continue
			}
			if changes := corrector.Apply(ctx, rec); len(changes) > 0 {
				f.corrected++
			}
			if res := validator.Validate(ctx, rec); !res.Valid {
				f.invalid++
			}
			f.imported++
			merged = append(merged, *rec)
		}
	}

	if importOut != "" {
		if err := writeRecords(importOut, merged); err != nil {
			return err
		}
	}

	printImportSummary(files, len(merged), importOut, time.Since(start))
	archiveImportRuns(ctx, files, start)
	return nil
}

// writeRecords writes records to path in canonical UTF-8 CSV form.
func writeRecords(path string, recs []model.Record) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csvio.NewWriter(out)
	if err := w.WriteAll(recs); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return w.Flush()
}

func printImportSummary(files []fileImport, total int, outPath string, elapsed time.Duration) {
	fmt.Printf("%-32s %8s %8s %8s %8s %8s %8s\n",
		"FILE", "READ", "KEPT", "DUPES", "BAD", "FIXED", "INVALID")
	for i := range files {
		f := &files[i]
		fmt.Printf("%-32s %8d %8d %8d %8d %8d %8d\n",
			trimName(f.path, 32),
			len(f.records)+len(f.rowErrs),
			f.imported,
			f.duplicates,
			len(f.rowErrs),
			f.corrected,
			f.invalid,
		)
	}

	fmt.Printf("\n%d records merged in %s\n", total, elapsed.Round(time.Millisecond))
	if outPath != "" {
		fmt.Printf("written to %s\n", outPath)
	}
}

// archiveImportRuns records one run per input file when archiving is
// configured. Failures are logged, not fatal; the archive observes.
func archiveImportRuns(ctx context.Context, files []fileImport, start time.Time) {
	if cfg.ArchivePath == "" {
		return
	}

	hist, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		logger.Get().Warn(ctx, "import history unavailable",
			logger.String("path", cfg.ArchivePath),
			logger.Error(err),
		)
		return
	}
	defer hist.Close()

	finished := time.Now()
	for i := range files {
		f := &files[i]
		run := archive.ImportRun{
			JobID:        "cli-" + uuid.NewString(),
			Path:         f.path,
			State:        string(jobs.StateCompleted),
			RowsRead:     len(f.records) + len(f.rowErrs),
			RowsImported: f.imported,
			Duplicates:   f.duplicates,
			Invalid:      len(f.rowErrs),
			Corrected:    f.corrected,
			StartedAt:    start,
			FinishedAt:   finished,
		}
		if err := hist.RecordImportRun(ctx, run); err != nil {
			logger.Get().Warn(ctx, "archiving import run failed",
				logger.String("file", f.path),
				logger.Error(err),
			)
		}
	}
}

// trimName shortens long paths from the left so the basename stays visible.
func trimName(path string, max int) string {
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-(max-3):]
}

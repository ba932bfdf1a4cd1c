package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpen(t *testing.T) {
	a := openTestArchive(t)

	stats, err := a.Stats(context.Background())
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}

	for _, table := range []string{"import_runs", "correction_log", "validation_runs"} {
		count, ok := stats[table]
		if !ok {
			t.Errorf("stats missing table %s", table)
		}
		if count != 0 {
			t.Errorf("expected empty table %s, got %d rows", table, count)
		}
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history", "chestbuddy.db")

	a, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open archive at %s: %v", path, err)
	}
	defer a.Close()

	if a.Path() != path {
		t.Errorf("expected path %s, got %s", path, a.Path())
	}

	// A second open against the same file must reuse the schema.
	b, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen archive: %v", err)
	}
	defer b.Close()
}

func TestRecordImportRun(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	base := time.Date(2023, 3, 11, 10, 0, 0, 0, time.UTC)
	runs := []ImportRun{
		{
			JobID: "job-1", Path: "imports/march.csv", State: "completed",
			RowsRead: 400, RowsImported: 380, Duplicates: 15, Invalid: 5, Corrected: 12,
			StartedAt: base, FinishedAt: base.Add(2 * time.Second),
		},
		{
			JobID: "job-2", Path: "imports/april.csv", State: "failed",
			RowsRead: 10, Error: "too many malformed csv rows",
			StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second),
		},
		{
			JobID: "job-3", Path: "imports/may.csv", State: "canceled",
			RowsRead: 200, RowsImported: 200,
			StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2*time.Hour + time.Second),
		},
	}
	for _, run := range runs {
		if err := a.RecordImportRun(ctx, run); err != nil {
			t.Fatalf("failed to record import run %s: %v", run.JobID, err)
		}
	}

	recent, err := a.RecentImports(ctx, 2)
	if err != nil {
		t.Fatalf("failed to query recent imports: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent imports, got %d", len(recent))
	}
	if recent[0].JobID != "job-3" || recent[1].JobID != "job-2" {
		t.Errorf("expected newest first (job-3, job-2), got (%s, %s)", recent[0].JobID, recent[1].JobID)
	}

	all, err := a.RecentImports(ctx, 0) // default limit
	if err != nil {
		t.Fatalf("failed to query all imports: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 imports, got %d", len(all))
	}

	got := all[2] // oldest
	if got.ID == 0 {
		t.Error("expected assigned id")
	}
	if got.JobID != "job-1" || got.Path != "imports/march.csv" || got.State != "completed" {
		t.Errorf("unexpected run identity: %+v", got)
	}
	if got.RowsRead != 400 || got.RowsImported != 380 || got.Duplicates != 15 || got.Invalid != 5 || got.Corrected != 12 {
		t.Errorf("unexpected run counters: %+v", got)
	}
	if got.Error != "" {
		t.Errorf("expected empty error, got %q", got.Error)
	}
	if got.StartedAt.Unix() != base.Unix() {
		t.Errorf("expected started_at %v, got %v", base, got.StartedAt)
	}
	if got.FinishedAt.Unix() != base.Add(2*time.Second).Unix() {
		t.Errorf("expected finished_at %v, got %v", base.Add(2*time.Second), got.FinishedAt)
	}

	failed := all[1]
	if failed.Error != "too many malformed csv rows" {
		t.Errorf("expected error message to round-trip, got %q", failed.Error)
	}
}

func TestRecordCorrections(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	// Empty batches are a no-op
	if err := a.RecordCorrections(ctx, nil); err != nil {
		t.Fatalf("expected empty batch to succeed, got %v", err)
	}

	entries := []CorrectionEntry{
		{RecordID: "rec-1", Field: "player", From: "Feldjager", To: "Feldjäger", RuleID: "rule-1"},
		{RecordID: "rec-1", Field: "chest_type", From: "Fire Chst", To: "Fire Chest", RuleID: "rule-2"},
		{RecordID: "rec-2", Field: "source", From: "Lvl 25 Crypt", To: "Level 25 Crypt", RuleID: "rule-3"},
	}
	if err := a.RecordCorrections(ctx, entries); err != nil {
		t.Fatalf("failed to record corrections: %v", err)
	}

	got, err := a.CorrectionsForRecord(ctx, "rec-1")
	if err != nil {
		t.Fatalf("failed to query corrections: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 corrections for rec-1, got %d", len(got))
	}
	if got[0].From != "Feldjager" || got[0].To != "Feldjäger" || got[0].RuleID != "rule-1" {
		t.Errorf("unexpected first correction: %+v", got[0])
	}
	if got[1].Field != "chest_type" {
		t.Errorf("expected corrections in insert order, got %+v", got[1])
	}
	if got[0].AppliedAt.IsZero() {
		t.Error("expected applied_at to be filled in")
	}

	none, err := a.CorrectionsForRecord(ctx, "rec-unknown")
	if err != nil {
		t.Fatalf("failed to query unknown record: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no corrections for unknown record, got %d", len(none))
	}
}

func TestRecordValidationRun(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	first := ValidationRun{
		Checked: 500, Valid: 460, Invalid: 40, FuzzyMatches: 12,
		Duration: 180 * time.Millisecond,
		RanAt:    time.Date(2023, 3, 11, 10, 0, 0, 0, time.UTC),
	}
	second := ValidationRun{
		Checked: 510, Valid: 505, Invalid: 5, FuzzyMatches: 3,
		Duration: 95 * time.Millisecond,
		RanAt:    time.Date(2023, 3, 11, 11, 0, 0, 0, time.UTC),
	}
	if err := a.RecordValidationRun(ctx, first); err != nil {
		t.Fatalf("failed to record validation run: %v", err)
	}
	if err := a.RecordValidationRun(ctx, second); err != nil {
		t.Fatalf("failed to record validation run: %v", err)
	}

	runs, err := a.RecentValidationRuns(ctx, 10)
	if err != nil {
		t.Fatalf("failed to query validation runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 validation runs, got %d", len(runs))
	}
	if runs[0].Checked != 510 {
		t.Errorf("expected newest run first, got %+v", runs[0])
	}
	if runs[1].Invalid != 40 || runs[1].FuzzyMatches != 12 {
		t.Errorf("unexpected counters: %+v", runs[1])
	}
	if runs[1].DurationMs != 180 {
		t.Errorf("expected duration_ms 180, got %d", runs[1].DurationMs)
	}
	if runs[1].Duration != 180*time.Millisecond {
		t.Errorf("expected duration to be rebuilt from ms, got %v", runs[1].Duration)
	}
}

func TestStats(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	if err := a.RecordImportRun(ctx, ImportRun{JobID: "job-1", Path: "a.csv", State: "completed", StartedAt: time.Now()}); err != nil {
		t.Fatalf("failed to record import run: %v", err)
	}
	if err := a.RecordCorrections(ctx, []CorrectionEntry{
		{RecordID: "rec-1", Field: "player", From: "a", To: "b"},
		{RecordID: "rec-2", Field: "player", From: "c", To: "d"},
	}); err != nil {
		t.Fatalf("failed to record corrections: %v", err)
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats["import_runs"] != 1 {
		t.Errorf("expected 1 import run, got %d", stats["import_runs"])
	}
	if stats["correction_log"] != 2 {
		t.Errorf("expected 2 corrections, got %d", stats["correction_log"])
	}
	if stats["validation_runs"] != 0 {
		t.Errorf("expected 0 validation runs, got %d", stats["validation_runs"])
	}
}

func TestConcurrentWrites(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			done <- a.RecordImportRun(ctx, ImportRun{
				JobID: "job", Path: "imports/load.csv", State: "completed",
				RowsImported: n, StartedAt: time.Now(),
			})
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent write failed: %v", err)
		}
	}

	stats, err := a.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats["import_runs"] != 10 {
		t.Errorf("expected 10 import runs, got %d", stats["import_runs"])
	}
}

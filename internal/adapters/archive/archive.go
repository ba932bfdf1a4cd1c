// Package archive keeps a permanent SQLite log of finished imports, applied
// corrections and validation runs. The in-memory record table stays
// authoritative; the archive answers "what happened" questions after the
// table has moved on.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LinkesAuge/chestbuddy/pkg/metrics"
)

const defaultRecentLimit = 20

// ImportRun is one finished import job as stored in the archive.
type ImportRun struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	Path         string    `json:"path"`
	State        string    `json:"state"`
	RowsRead     int       `json:"rows_read"`
	RowsImported int       `json:"rows_imported"`
	Duplicates   int       `json:"duplicates"`
	Invalid      int       `json:"invalid"`
	Corrected    int       `json:"corrected"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// CorrectionEntry is one applied replacement as stored in the archive.
type CorrectionEntry struct {
	ID        int64     `json:"id"`
	RecordID  string    `json:"record_id"`
	Field     string    `json:"field"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	RuleID    string    `json:"rule_id"`
	AppliedAt time.Time `json:"applied_at"`
}

// ValidationRun summarizes one validation pass over the table.
type ValidationRun struct {
	ID           int64         `json:"id"`
	Checked      int           `json:"checked"`
	Valid        int           `json:"valid"`
	Invalid      int           `json:"invalid"`
	FuzzyMatches int           `json:"fuzzy_matches"`
	Duration     time.Duration `json:"-"`
	DurationMs   int64         `json:"duration_ms"`
	RanAt        time.Time     `json:"ran_at"`
}

// Archive is the SQLite-backed history log. Writes are serialized through
// a mutex on top of a single-connection pool.
type Archive struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open initializes the SQLite database at the given path, creating the
// directory and schema as needed.
func Open(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		// NORMAL is safe under WAL and much faster than FULL.
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	a := &Archive{db: db, path: path}
	if err := a.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// initialize creates the required tables.
func (a *Archive) initialize() error {
	importRunsTable := `
	CREATE TABLE IF NOT EXISTS import_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		path TEXT NOT NULL,
		state TEXT NOT NULL,
		rows_read INTEGER NOT NULL DEFAULT 0,
		rows_imported INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		invalid INTEGER NOT NULL DEFAULT 0,
		corrected INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_import_runs_job ON import_runs(job_id);
	CREATE INDEX IF NOT EXISTS idx_import_runs_finished ON import_runs(finished_at);
	`

	correctionLogTable := `
	CREATE TABLE IF NOT EXISTS correction_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id TEXT NOT NULL,
		field TEXT NOT NULL,
		from_value TEXT NOT NULL,
		to_value TEXT NOT NULL,
		rule_id TEXT NOT NULL DEFAULT '',
		applied_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_correction_log_record ON correction_log(record_id);
	CREATE INDEX IF NOT EXISTS idx_correction_log_applied ON correction_log(applied_at);
	`

	validationRunsTable := `
	CREATE TABLE IF NOT EXISTS validation_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		checked INTEGER NOT NULL DEFAULT 0,
		valid INTEGER NOT NULL DEFAULT 0,
		invalid INTEGER NOT NULL DEFAULT 0,
		fuzzy_matches INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		ran_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_validation_runs_ran ON validation_runs(ran_at);
	`

	for _, table := range []string{
		importRunsTable,
		correctionLogTable,
		validationRunsTable,
	} {
		if _, err := a.db.Exec(table); err != nil {
			return fmt.Errorf("creating archive table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Path returns the database file location.
func (a *Archive) Path() string {
	return a.path
}

// RecordImportRun appends one finished import run.
func (a *Archive) RecordImportRun(ctx context.Context, run ImportRun) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO import_runs
			(job_id, path, state, rows_read, rows_imported, duplicates, invalid, corrected, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.JobID, run.Path, run.State,
		run.RowsRead, run.RowsImported, run.Duplicates, run.Invalid, run.Corrected,
		run.Error, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		metrics.RecordErrorByComponent("archive", "write_error")
		return fmt.Errorf("inserting import run: %w", err)
	}
	return nil
}

// RecordCorrections appends a batch of applied corrections in one
// transaction.
func (a *Archive) RecordCorrections(ctx context.Context, entries []CorrectionEntry) error {
	if len(entries) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordErrorByComponent("archive", "tx_error")
		return fmt.Errorf("beginning corrections transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO correction_log (record_id, field, from_value, to_value, rule_id, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		metrics.RecordErrorByComponent("archive", "write_error")
		return fmt.Errorf("preparing correction insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, e := range entries {
		appliedAt := e.AppliedAt
		if appliedAt.IsZero() {
			appliedAt = now
		}
		if _, err := stmt.ExecContext(ctx, e.RecordID, e.Field, e.From, e.To, e.RuleID, appliedAt.UTC()); err != nil {
			_ = tx.Rollback()
			metrics.RecordErrorByComponent("archive", "write_error")
			return fmt.Errorf("inserting correction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordErrorByComponent("archive", "tx_error")
		return fmt.Errorf("committing corrections: %w", err)
	}
	return nil
}

// RecordValidationRun appends one validation pass summary.
func (a *Archive) RecordValidationRun(ctx context.Context, run ValidationRun) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if run.RanAt.IsZero() {
		run.RanAt = time.Now().UTC()
	}
	durationMs := run.DurationMs
	if durationMs == 0 {
		durationMs = run.Duration.Milliseconds()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO validation_runs (checked, valid, invalid, fuzzy_matches, duration_ms, ran_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Checked, run.Valid, run.Invalid, run.FuzzyMatches, durationMs, run.RanAt.UTC(),
	)
	if err != nil {
		metrics.RecordErrorByComponent("archive", "write_error")
		return fmt.Errorf("inserting validation run: %w", err)
	}
	return nil
}

// RecentImports returns the most recently finished import runs, newest
// first.
func (a *Archive) RecentImports(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, job_id, path, state, rows_read, rows_imported, duplicates, invalid, corrected, error, started_at, finished_at
		FROM import_runs
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import runs: %w", err)
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		var run ImportRun
		if err := rows.Scan(
			&run.ID, &run.JobID, &run.Path, &run.State,
			&run.RowsRead, &run.RowsImported, &run.Duplicates, &run.Invalid, &run.Corrected,
			&run.Error, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning import run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CorrectionsForRecord returns every archived correction for one record,
// oldest first.
func (a *Archive) CorrectionsForRecord(ctx context.Context, recordID string) ([]CorrectionEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, record_id, field, from_value, to_value, rule_id, applied_at
		FROM correction_log
		WHERE record_id = ?
		ORDER BY id ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("querying corrections: %w", err)
	}
	defer rows.Close()

	var entries []CorrectionEntry
	for rows.Next() {
		var e CorrectionEntry
		if err := rows.Scan(&e.ID, &e.RecordID, &e.Field, &e.From, &e.To, &e.RuleID, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("scanning correction: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentValidationRuns returns the most recent validation pass summaries,
// newest first.
func (a *Archive) RecentValidationRuns(ctx context.Context, limit int) ([]ValidationRun, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, checked, valid, invalid, fuzzy_matches, duration_ms, ran_at
		FROM validation_runs
		ORDER BY ran_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying validation runs: %w", err)
	}
	defer rows.Close()

	var runs []ValidationRun
	for rows.Next() {
		var run ValidationRun
		if err := rows.Scan(&run.ID, &run.Checked, &run.Valid, &run.Invalid, &run.FuzzyMatches, &run.DurationMs, &run.RanAt); err != nil {
			return nil, fmt.Errorf("scanning validation run: %w", err)
		}
		run.Duration = time.Duration(run.DurationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats returns row counts per archive table.
func (a *Archive) Stats(ctx context.Context) (map[string]int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"import_runs", "correction_log", "validation_runs"} {
		var count int64
		if err := a.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

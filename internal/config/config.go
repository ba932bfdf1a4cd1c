// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Fields carry koanf tags; Load layers defaults, file, then env on top.
// - Provide New() to build a Config with defaults.
// - Validation failures wrap this package's sentinel errors.
package config

import (
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir is the base directory for data files created at runtime.
	DataDir string `koanf:"data_dir"`

	// ListsDir holds the validation list files
	// (players.txt, chest_types.txt, sources.txt).
	ListsDir string `koanf:"lists_dir"`

	// RulesFile is the CSV file holding correction rules.
	RulesFile string `koanf:"rules_file"`

	// ArchivePath is the SQLite history database. Empty disables archiving.
	ArchivePath string `koanf:"archive_path"`

	// ChunkSize sets how many CSV rows an import reads per chunk.
	ChunkSize int `koanf:"chunk_size"`

	// WorkerCount sets the number of import workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory import job queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize caps the content-key cache used to drop duplicate rows.
	DedupeSize int `koanf:"dedupe_size"`

	// FuzzyThreshold is the minimum similarity for a fuzzy list match,
	// in [0,1]. 1.0 disables fuzzy matching.
	FuzzyThreshold float64 `koanf:"fuzzy_threshold"`

	// CaseSensitive controls exact list matching.
	CaseSensitive bool `koanf:"case_sensitive"`

	// AutoValidate and AutoCorrect toggle the per-import pipeline stages.
	AutoValidate bool `koanf:"auto_validate"`
	AutoCorrect  bool `koanf:"auto_correct"`

	// WatchLists enables hot reload of the validation list files.
	WatchLists bool `koanf:"watch_lists"`

	// SnapshotInterval is how often the aggregate snapshot is rebuilt.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`
}

// New creates a Config populated with defaults. Load layers file and
// environment overrides on top of a copy of this.
func New() *Config {
	c := &Config{
		LogLevel:         "info",
		Addr:             ":8080",
		DataDir:          "data",
		ListsDir:         "data/lists",
		RulesFile:        "data/rules.csv",
		ArchivePath:      "data/archive.db",
		ChunkSize:        200,
		WorkerCount:      4,
		QueueSize:        64,
		DedupeSize:       100_000,
		FuzzyThreshold:   0.85,
		CaseSensitive:    false,
		AutoValidate:     true,
		AutoCorrect:      true,
		WatchLists:       true,
		SnapshotInterval: 30 * time.Second,
	}
	return c
}

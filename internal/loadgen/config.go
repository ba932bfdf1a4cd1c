package loadgen

import "time"

// Supported fixture encodings.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingCP1252  = "windows-1252"
)

// Config holds configuration for a load generation run.
type Config struct {
	BaseURL    string        // Base URL of the service (drive mode)
	NumRecords int           // Number of rows to generate
	Days       int           // Date spread, counting back from today
	TopN       int           // Leaderboard entries to fetch in drive mode
	Workers    int           // Concurrent workers for rank queries
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Fixture file path
	LogFile    string        // Log file for run output
	Seed       uint64        // PRNG seed; same seed, same fixture shape
	ErrorRate  float64       // Fraction of rows with injected defects
	Encoding   string        // utf-8, utf-8-bom or windows-1252
	Drive      bool          // Submit to a running server and verify
	Verbose    bool          // Enable verbose logging
}

// Row is one CSV line before encoding. Cells stay raw strings so
// injected defects (bad dates, junk values) survive untouched.
type Row struct {
	Date      string
	Player    string
	Source    string
	ChestType string
	Value     string
	Clan      string
	Defect    string // empty for clean rows
}

// Injected defect kinds.
const (
	DefectMisspelledChest = "misspelled_chest"
	DefectUnknownPlayer   = "unknown_player"
	DefectBadDate         = "bad_date"
	DefectBadValue        = "bad_value"
)

// cells returns the row in canonical column order.
func (r Row) cells() []string {
	return []string{r.Date, r.Player, r.Source, r.ChestType, r.Value, r.Clan}
}

// imports reports whether the server will accept the row. Misspellings
// and unknown names import (validation only flags them); malformed
// dates and values are rejected at parse.
func (r Row) imports() bool {
	return r.Defect != DefectBadDate && r.Defect != DefectBadValue
}

// PlayerTotal is the generator's own bookkeeping for one player.
type PlayerTotal struct {
	Total  int
	Chests int
}

// Stats holds load generation run statistics.
type Stats struct {
	RecordsGenerated   int
	DefectsInjected    int
	RowsExpected       int // rows the server should import
	RowsImported       int
	Duplicates         int
	Invalid            int
	Corrected          int
	JobState           string
	LeaderboardEntries int
	RanksChecked       int
	Mismatches         int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

// jobAck mirrors the import submission response.
type jobAck struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// jobStatus mirrors the import status response.
type jobStatus struct {
	JobID    string `json:"job_id"`
	State    string `json:"state"`
	Progress struct {
		RowsRead     int `json:"rows_read"`
		RowsImported int `json:"rows_imported"`
		Duplicates   int `json:"duplicates"`
		Invalid      int `json:"invalid"`
		Corrected    int `json:"corrected"`
	} `json:"progress"`
	Error string `json:"error"`
}

// terminal reports whether the job reached a final state.
func (s jobStatus) terminal() bool {
	switch s.State {
	case "completed", "failed", "canceled":
		return true
	}
	return false
}

// Entry mirrors a leaderboard entry.
type Entry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Total  int    `json:"total"`
	Chests int    `json:"chests"`
}

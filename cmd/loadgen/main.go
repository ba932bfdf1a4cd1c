package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/loadgen"
)

// Default configuration constants.
const (
	defaultNumRecords = 5000
	defaultDays       = 30
	defaultErrorRate  = 0.05
	defaultTopN       = 50
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		numRecords = flag.Int("records", defaultNumRecords, "Number of chest rows to generate")
		days       = flag.Int("days", defaultDays, "Date spread counting back from today")
		errorRate  = flag.Float64("error-rate", defaultErrorRate, "Fraction of rows with injected defects (0..1)")
		encoding   = flag.String("encoding", loadgen.EncodingUTF8, "Fixture encoding: utf-8, utf-8-bom or windows-1252")
		seed       = flag.Uint64("seed", 0, "PRNG seed; 0 picks a random one")
		outputFile = flag.String("output", "", "Fixture file path (default: chests_TIMESTAMP.csv)")
		drive      = flag.Bool("drive", false, "Submit the fixture to a running server and verify rankings")
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		topN       = flag.Int("top", defaultTopN, "Leaderboard entries to fetch in drive mode")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent workers for rank queries")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile    = flag.String("log", "", "Log file for run output (default: loadgen_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &loadgen.Config{
		BaseURL:    *baseURL,
		NumRecords: *numRecords,
		Days:       *days,
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Seed:       *seed,
		ErrorRate:  *errorRate,
		Encoding:   *encoding,
		Drive:      *drive,
		Verbose:    *verbose,
	}

	if err := loadgen.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load generation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

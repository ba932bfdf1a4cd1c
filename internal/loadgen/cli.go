package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		logFile = "loadgen_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the load generation tool.
func ShowHelp() {
	os.Stdout.WriteString(`ChestBuddy Load Generator
=========================

Builds realistic chest CSV fixtures and optionally drives them through
a running ChestBuddy server, verifying the resulting rankings.

Usage:
  go run cmd/loadgen/main.go [options]

Options:
  -records int
        Number of chest rows to generate (default 5000)
  -days int
        Date spread counting back from today (default 30)
  -error-rate float
        Fraction of rows with injected defects, 0..1 (default 0.05)
  -encoding string
        Fixture encoding: utf-8, utf-8-bom or windows-1252 (default "utf-8")
  -seed uint
        PRNG seed; 0 picks a random one
  -output string
        Fixture file path (default: chests_TIMESTAMP.csv)
  -drive
        Submit the fixture to a running server and verify rankings
  -url string
        Base URL of the service (default "http://localhost:8080")
  -top int
        Leaderboard entries to fetch in drive mode (default 50)
  -workers int
        Concurrent workers for rank queries (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for run output (default: loadgen_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Write a 5000 row fixture with 5% defects
  go run cmd/loadgen/main.go -records 5000 -error-rate 0.05

  # Reproducible Windows-1252 fixture
  go run cmd/loadgen/main.go -seed 42 -encoding windows-1252 -output fixtures/legacy.csv

  # Drive a local server and verify the leaderboard
  go run cmd/loadgen/main.go -drive -records 20000 -url http://localhost:8080
`)
}

package service

import "errors"

// Sentinel errors returned by service operations, matched by callers via
// errors.Is.
var (
	// ErrNotStarted is returned when an operation runs before Start.
	ErrNotStarted = errors.New("service not started")

	// ErrFileNotFound is returned when an import path does not point at a
	// readable file.
	ErrFileNotFound = errors.New("import file not found")

	// ErrQueueFull is returned when the import queue refuses a job.
	ErrQueueFull = errors.New("import queue full")

	// ErrQueueClosed is returned when imports arrive during shutdown.
	ErrQueueClosed = errors.New("import queue closed")

	// ErrUnknownListKind is returned for list kinds other than players,
	// chest_types and sources.
	ErrUnknownListKind = errors.New("unknown list kind")

	// ErrUnknownChartKind is returned for chart kinds the dashboard does
	// not know how to render.
	ErrUnknownChartKind = errors.New("unknown chart kind")
)

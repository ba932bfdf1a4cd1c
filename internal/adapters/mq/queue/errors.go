package queue

import "errors"

// Sentinel kinds for refused enqueues.
var (
	ErrFull   = errors.New("import queue full")
	ErrClosed = errors.New("import queue closed")
)

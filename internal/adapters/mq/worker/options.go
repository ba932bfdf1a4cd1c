// Package worker defines worker contracts for asynchronous import processing.
package worker

import (
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithChunkSize sets the default chunk size for imports that do not
// override it.
func WithChunkSize(size int) Option {
	return func(w *InMemoryWorker) {
		if size > 0 {
			w.chunkSize = size
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

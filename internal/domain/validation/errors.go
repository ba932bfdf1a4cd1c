package validation

import "errors"

// Sentinel kinds for validation errors.
var (
	ErrWatcherCallback = errors.New("watcher requires loader and apply callbacks")
)

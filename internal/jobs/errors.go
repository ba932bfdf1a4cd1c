package jobs

import "errors"

// ErrUnknownJob is returned when a job ID was never tracked.
var ErrUnknownJob = errors.New("unknown import job")

// Package errs provides the shared error taxonomy for ChestBuddy.
// Adapters wrap their sentinel errors into a Kind so that transport
// layers and metrics can classify failures without inspecting every
// package's sentinels, and user-facing surfaces can render a message
// that never leaks internals.
//
// Creating errors:
//
//	return errs.E(errs.KindInvalid, "parse import file", err)
//
// Checking errors:
//
//	if errs.KindOf(err) == errs.KindNotFound { ... }
//	msg := errs.UserMessage(err)
package errs

import (
	"errors"
	"fmt"
)

// Re-export standard library helpers so callers can import only this
// package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Kind classifies an error for transport mapping and metrics labels.
type Kind int

const (
	// KindInternal is the default for unclassified failures.
	KindInternal Kind = iota
	// KindNotFound indicates a missing record, rule, list entry, or job.
	KindNotFound
	// KindInvalid indicates rejected input: bad rows, bad filters, bad edits.
	KindInvalid
	// KindConflict indicates the operation cannot proceed in the current
	// state, e.g. the import queue is full or a duplicate was detected.
	KindConflict
	// KindUnavailable indicates a dependency is not ready, e.g. the
	// archive store is closed or the service is shutting down.
	KindUnavailable
)

// String returns the metrics label for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Severity represents how alarming an error is in logs and metrics.
type Severity int

const (
	// SeverityInfo is for expected rejections, e.g. validation failures.
	SeverityInfo Severity = iota
	// SeverityWarning is for degraded behavior the service survives.
	SeverityWarning
	// SeverityError is for real failures of an operation.
	SeverityError
	// SeverityCritical is for failures that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a classified error with an operation name for context.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "import csv"
	Err  error  // underlying cause, may be nil
	Msg  string // optional user-facing message override
}

// E builds a classified error wrapping err.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a classified error from a format string.
func Ef(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithMessage sets the user-facing message and returns the error.
func (e *Error) WithMessage(msg string) *Error {
	e.Msg = msg
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind of err, walking the wrap chain.
// Unclassified errors report KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// SeverityOf derives the log/metrics severity of err from its kind.
func SeverityOf(err error) Severity {
	switch KindOf(err) {
	case KindNotFound, KindInvalid:
		return SeverityInfo
	case KindConflict:
		return SeverityWarning
	case KindUnavailable:
		return SeverityError
	default:
		return SeverityError
	}
}

// UserMessage renders a message safe to show to users. Classified errors
// with an explicit message use it; otherwise a generic text per kind is
// returned so internals never leak through an API response.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	switch KindOf(err) {
	case KindNotFound:
		return "the requested item was not found"
	case KindInvalid:
		return "the request was invalid"
	case KindConflict:
		return "the operation conflicts with the current state"
	case KindUnavailable:
		return "the service is temporarily unavailable"
	default:
		return "an internal error occurred"
	}
}

package csvio

import "errors"

// Sentinel kinds for CSV IO errors.
var (
	// ErrNoHeader indicates the input ended before a header row.
	ErrNoHeader = errors.New("csv input has no header row")

	// ErrMissingColumn indicates the header lacks a required column.
	ErrMissingColumn = errors.New("csv header missing required column")

	// ErrTooManyRowErrors indicates the malformed-row cap was crossed,
	// which usually means the wrong file was imported.
	ErrTooManyRowErrors = errors.New("too many malformed csv rows")

	// ErrBadRuleRow indicates a malformed row in a correction rules file.
	ErrBadRuleRow = errors.New("invalid correction rule row")
)

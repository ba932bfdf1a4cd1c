package correction

import "errors"

// Sentinel kinds for correction errors.
var (
	// ErrRuleNotFound indicates no rule exists with the given id.
	ErrRuleNotFound = errors.New("correction rule not found")

	// ErrEmptyFrom indicates a rule with no value to match.
	ErrEmptyFrom = errors.New("correction rule has empty from value")
)

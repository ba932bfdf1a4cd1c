package model

import "errors"

// Sentinel kinds for row parsing errors.
var (
	ErrFieldCount       = errors.New("row must have exactly 6 fields")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidValue     = errors.New("invalid chest value")
	ErrMissingPlayer    = errors.New("player name is required")
	ErrMissingChestType = errors.New("chest type is required")
	ErrUnknownField     = errors.New("unknown list field")
)

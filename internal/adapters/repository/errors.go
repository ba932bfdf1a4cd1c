package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateID  = errors.New("record id already exists")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)

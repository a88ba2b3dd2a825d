package storage

import "errors"

// Storage errors for the append-only ledgers.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists. Ledgers do not allow updates.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPositionConflict is returned by Commit when the position advanced
	// since the session was prepared. The caller lost the race and must not
	// retry the same swap against the stale position.
	ErrPositionConflict = errors.New("position conflict: session prepared against stale position")
)

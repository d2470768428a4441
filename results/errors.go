package results

import "errors"

// Common record store errors.
var (
	// ErrNotFound is returned when no record exists for a namespace.
	ErrNotFound = errors.New("result record not found")
	// ErrCorrupted is returned when a record file exists but cannot be parsed.
	ErrCorrupted = errors.New("result record corrupted")
)

package storage

import "errors"

// Sentinels returned by every backend. Callers match them with errors.Is.
var (
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey reports an insert whose key is taken. Registry and
	// execution rows are create-once, so callers treat it as already stored.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	ErrInvalidInput = errors.New("storage: invalid input")
)

package storage

import "errors"

var (
	// ErrStorageFailure wraps every backend read, write or delete failure.
	// Callers must not assume a partial write is visible.
	ErrStorageFailure = errors.New("storage failure")

	// ErrNotFound is returned by Download when no blob exists under the key.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey rejects empty, absolute or parent-escaping keys.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrInvalidConfig is returned by the factory when a user's storage
	// configuration cannot be decoded or fails validation.
	ErrInvalidConfig = errors.New("invalid storage configuration")
)

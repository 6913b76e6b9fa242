package storage

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNotFound means no document is stored under the key.
	ErrNotFound = errors.New("document not found")

	// ErrKeyExists means Put found a document and Overwrite was off.
	ErrKeyExists = errors.New("document already exists at this key")

	// ErrInvalidKey rejects keys that are empty, absolute or climb out of
	// the storage root.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrTooLarge means the document is bigger than PutOptions.MaxSize.
	ErrTooLarge = errors.New("document exceeds maximum size")

	// ErrAccessDenied means the provider refused the credentials.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// Structured Error Type
// =============================================================================

// StorageError records which operation failed on which key.
type StorageError struct {
	Op  string // "Put", "Get", "Delete", "URL" or "Exists"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Helper Functions
// =============================================================================

// IsNotFound reports whether err means the document is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPermanent reports whether err will come back unchanged on a retry:
// a missing document, a bad key or refused credentials.
func IsPermanent(err error) bool {
	return IsNotFound(err) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrAccessDenied)
}

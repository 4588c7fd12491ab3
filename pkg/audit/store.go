package audit

import (
	"context"
	"fmt"
	"time"
)

// Store persists audit records.
type Store interface {
	// Save persists a single record.
	Save(ctx context.Context, rec *Record) error

	// List returns records created at or after since, newest first, up to
	// limit records. A zero since returns all records.
	List(ctx context.Context, since time.Time, limit int) ([]*Record, error)

	// Count returns the total number of stored records.
	Count(ctx context.Context) (int64, error)

	// PruneBefore deletes records created before the cutoff and returns how
	// many were removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases storage resources.
	Close() error
}

// StorageError wraps a storage-level failure with the backend and operation
// that produced it.
type StorageError struct {
	// Backend is the storage backend name (e.g., "sqlite").
	Backend string

	// Op is the operation that failed (e.g., "save", "prune").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s: %s failed: %v", e.Backend, e.Op, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

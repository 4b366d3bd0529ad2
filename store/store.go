// Package store defines the persistence contract for job records.
//
// A Store durably keeps the Record snapshot of every enqueued holder
// so that work survives a crash: at startup the manager asks for
// records whose running session id does not match the current session
// and re-enqueues them as abandoned in-flight work.
//
// Backends live in subpackages: memory (tests and development), sqlite,
// redis, and postgres.
package store

import (
	"context"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
)

// Store is the persistence contract for job records. All
// implementations must be safe for concurrent use.
type Store interface {
	// Insert persists a new record. Returns ErrDuplicateJob when a
	// record with the same id already exists.
	Insert(ctx context.Context, rec jobqueue.Record) error

	// Update overwrites an existing record. Returns ErrJobNotFound
	// when no record with the id exists.
	Update(ctx context.Context, rec jobqueue.Record) error

	// Remove deletes a record by id. Returns ErrJobNotFound when
	// absent.
	Remove(ctx context.Context, jobID string) error

	// FindByID retrieves a record by id.
	FindByID(ctx context.Context, jobID string) (jobqueue.Record, error)

	// Count returns the number of persisted records.
	Count(ctx context.Context) (int, error)

	// OrphanedBySession returns records whose RunningSessionID differs
	// from currentSessionID, ordered by the composite ordering key.
	// These are in-flight records abandoned by a previous session.
	OrphanedBySession(ctx context.Context, currentSessionID int64) ([]jobqueue.Record, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

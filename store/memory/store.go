// Package memory is a fully in-memory Store implementation. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
	"github.com/nnikos123/android-priority-jobqueue/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store keeps records in a mutex-guarded map. Records are stored and
// returned by value, so callers never share state with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]jobqueue.Record
	closed  bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{records: make(map[string]jobqueue.Record)}
}

// Insert persists a new record.
func (s *Store) Insert(_ context.Context, rec jobqueue.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return jobqueue.ErrStoreClosed
	}
	if _, exists := s.records[rec.ID]; exists {
		return jobqueue.ErrDuplicateJob
	}
	s.records[rec.ID] = rec
	return nil
}

// Update overwrites an existing record.
func (s *Store) Update(_ context.Context, rec jobqueue.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return jobqueue.ErrStoreClosed
	}
	if _, exists := s.records[rec.ID]; !exists {
		return jobqueue.ErrJobNotFound
	}
	s.records[rec.ID] = rec
	return nil
}

// Remove deletes a record by id.
func (s *Store) Remove(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return jobqueue.ErrStoreClosed
	}
	if _, exists := s.records[jobID]; !exists {
		return jobqueue.ErrJobNotFound
	}
	delete(s.records, jobID)
	return nil
}

// FindByID retrieves a record by id.
func (s *Store) FindByID(_ context.Context, jobID string) (jobqueue.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return jobqueue.Record{}, jobqueue.ErrStoreClosed
	}
	rec, ok := s.records[jobID]
	if !ok {
		return jobqueue.Record{}, jobqueue.ErrJobNotFound
	}
	return rec, nil
}

// Count returns the number of persisted records.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, jobqueue.ErrStoreClosed
	}
	return len(s.records), nil
}

// OrphanedBySession returns records left behind by another session,
// ordered by priority descending, creation time ascending, insertion
// order ascending.
func (s *Store) OrphanedBySession(_ context.Context, currentSessionID int64) ([]jobqueue.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, jobqueue.ErrStoreClosed
	}

	var out []jobqueue.Record
	for _, rec := range s.records {
		if rec.RunningSessionID != currentSessionID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.CreatedNs != b.CreatedNs {
			return a.CreatedNs < b.CreatedNs
		}
		if a.InsertionOrder != nil && b.InsertionOrder != nil {
			return *a.InsertionOrder < *b.InsertionOrder
		}
		return false
	})
	return out, nil
}

// Clear removes every record.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return jobqueue.ErrStoreClosed
	}
	s.records = make(map[string]jobqueue.Record)
	return nil
}

// Close marks the store closed; all further calls fail with
// ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Package memory implements storage.Backend in process memory; intended for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

// Store keeps lock records in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.Record
}

// New returns a ready to use in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*storage.Record)}
}

// Get returns the record for recordID or storage.ErrNotFound.
func (s *Store) Get(_ context.Context, recordID string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return record.Clone(), nil
}

// Put overwrites any existing record for recordID.
func (s *Store) Put(_ context.Context, recordID string, record *storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordID] = record.Clone()
	return nil
}

// Delete removes the record for recordID. Absent keys are not an error.
func (s *Store) Delete(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordID)
	return nil
}

// List returns all stored record ids in sorted order.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Package storage defines the keyed persistence boundary for lock records.
//
// Backends know nothing about expiry. A Get returns whatever record is
// stored, expired or not; deciding liveness and evicting stale records is
// the lock service's job.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates no record exists for the requested record id.
var ErrNotFound = errors.New("storage: not found")

// Record is the persisted form of a lock.
type Record struct {
	RecordID       string `json:"record_id"`
	HolderName     string `json:"holder_name"`
	HolderGroup    string `json:"holder_group"`
	AcquiredAtUnix int64  `json:"acquired_at_unix"`
	ExpiresAtUnix  int64  `json:"expires_at_unix"`
}

// Clone returns a copy of the record so callers cannot alias stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Backend is the keyed store behind the lock service.
//
// Put is an unconditional overwrite: the last writer wins and there is no
// compare-and-swap. Delete is idempotent, removing an absent key succeeds.
type Backend interface {
	// Get returns the record for recordID or ErrNotFound.
	Get(ctx context.Context, recordID string) (*Record, error)
	// Put stores record under recordID, replacing any existing record.
	Put(ctx context.Context, recordID string, record *Record) error
	// Delete removes the record for recordID if present.
	Delete(ctx context.Context, recordID string) error
	// List returns the ids of every stored record, live or expired.
	List(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

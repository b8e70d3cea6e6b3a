// Package bolt implements storage.Backend on a single-file bbolt database.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

var bucketLocks = []byte("locks")

// Store wraps an open bbolt database holding one bucket of lock records.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the database file at path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt: database path required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %q: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLocks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: prepare bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the record for recordID or storage.ErrNotFound.
func (s *Store) Get(_ context.Context, recordID string) (*storage.Record, error) {
	var record *storage.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLocks).Get([]byte(recordID))
		if data == nil {
			return storage.ErrNotFound
		}
		record = &storage.Record{}
		if err := json.Unmarshal(data, record); err != nil {
			return fmt.Errorf("bolt: decode record %q: %w", recordID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Put overwrites any existing record for recordID.
func (s *Store) Put(_ context.Context, recordID string, record *storage.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("bolt: encode record %q: %w", recordID, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).Put([]byte(recordID), data)
	})
	if err != nil {
		return fmt.Errorf("bolt: put record: %w", err)
	}
	return nil
}

// Delete removes the record for recordID. Absent keys are not an error.
func (s *Store) Delete(_ context.Context, recordID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).Delete([]byte(recordID))
	})
	if err != nil {
		return fmt.Errorf("bolt: delete record: %w", err)
	}
	return nil
}

// List returns all stored record ids in key order.
func (s *Store) List(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLocks).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list records: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

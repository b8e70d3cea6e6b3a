// Package redis implements storage.Backend on a Redis server.
//
// Records are stored as JSON strings without a Redis TTL. Expiry is decided
// by the lock service on read, the same as every other backend, so a
// server-side TTL would change observable behaviour.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

const keyPrefix = "tmolockd:lock:"

// Store holds the Redis client used to persist lock records.
type Store struct {
	client goredis.UniversalClient
}

// New wraps an existing Redis client.
func New(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Open connects to the Redis server described by rawURL, for example
// redis://localhost:6379/0.
func Open(rawURL string) (*Store, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return New(goredis.NewClient(opts)), nil
}

func recordKey(recordID string) string {
	return keyPrefix + recordID
}

// Get returns the record for recordID or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, recordID string) (*storage.Record, error) {
	data, err := s.client.Get(ctx, recordKey(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get record: %w", err)
	}
	var record storage.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("redis: decode record %q: %w", recordID, err)
	}
	return &record, nil
}

// Put overwrites any existing record for recordID.
func (s *Store) Put(ctx context.Context, recordID string, record *storage.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis: encode record %q: %w", recordID, err)
	}
	if err := s.client.Set(ctx, recordKey(recordID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: put record: %w", err)
	}
	return nil
}

// Delete removes the record for recordID. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, recordID string) error {
	if err := s.client.Del(ctx, recordKey(recordID)).Err(); err != nil {
		return fmt.Errorf("redis: delete record: %w", err)
	}
	return nil
}

// List scans for all stored record ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: list records: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(keyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return ids, nil
		}
	}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

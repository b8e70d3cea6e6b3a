// Package disk implements storage.Backend as one JSON file per lock record
// under a root directory.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

const recordSuffix = ".json"

// Store persists lock records as files named after the escaped record id.
type Store struct {
	root  string
	locks sync.Map
}

// New prepares the root directory and returns a disk-backed store.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("disk: root path required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("disk: prepare directory %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) keyLock(encoded string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(encoded, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Store) encodeID(recordID string) (string, error) {
	if recordID == "" {
		return "", fmt.Errorf("disk: record id required")
	}
	encoded := url.PathEscape(recordID)
	if strings.Contains(encoded, "..") {
		return "", fmt.Errorf("disk: invalid record id %q", recordID)
	}
	return encoded, nil
}

func (s *Store) recordPath(encoded string) string {
	return filepath.Join(s.root, encoded+recordSuffix)
}

// Get reads the record file for recordID.
func (s *Store) Get(_ context.Context, recordID string) (*storage.Record, error) {
	encoded, err := s.encodeID(recordID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.recordPath(encoded))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("disk: read record: %w", err)
	}
	var record storage.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("disk: decode record %q: %w", recordID, err)
	}
	return &record, nil
}

// Put writes the record via a temp file and rename so readers never observe
// a partial write.
func (s *Store) Put(_ context.Context, recordID string, record *storage.Record) error {
	encoded, err := s.encodeID(recordID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("disk: encode record %q: %w", recordID, err)
	}

	mu := s.keyLock(encoded)
	mu.Lock()
	defer mu.Unlock()

	tmp, err := os.CreateTemp(s.root, encoded+".tmp-*")
	if err != nil {
		return fmt.Errorf("disk: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("disk: write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("disk: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.recordPath(encoded)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("disk: commit record: %w", err)
	}
	return nil
}

// Delete removes the record file. A missing file is not an error.
func (s *Store) Delete(_ context.Context, recordID string) error {
	encoded, err := s.encodeID(recordID)
	if err != nil {
		return err
	}
	mu := s.keyLock(encoded)
	mu.Lock()
	defer mu.Unlock()
	if err := os.Remove(s.recordPath(encoded)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disk: delete record: %w", err)
	}
	return nil
}

// List returns the ids of all record files in sorted order.
func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("disk: list records: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordSuffix) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, recordSuffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the disk store.
func (s *Store) Close() error {
	return nil
}

package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileIdentityCache persists the last-used identity as a small JSON file,
// by default under the user's configuration directory.
type FileIdentityCache struct {
	path string
}

// NewFileIdentityCache stores the identity at path.
func NewFileIdentityCache(path string) (*FileIdentityCache, error) {
	if path == "" {
		return nil, fmt.Errorf("identity cache path required")
	}
	return &FileIdentityCache{path: path}, nil
}

// DefaultIdentityCache places the cache at
// <user-config-dir>/tmolockd/identity.json.
func DefaultIdentityCache() (*FileIdentityCache, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return NewFileIdentityCache(filepath.Join(dir, "tmolockd", "identity.json"))
}

// Load reads the cached identity. A missing file yields a zero identity and
// no error.
func (c *FileIdentityCache) Load() (ClientIdentity, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ClientIdentity{}, nil
		}
		return ClientIdentity{}, fmt.Errorf("read identity cache: %w", err)
	}
	var identity ClientIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return ClientIdentity{}, fmt.Errorf("decode identity cache: %w", err)
	}
	return identity, nil
}

// Save writes the identity, creating the parent directory when needed.
func (c *FileIdentityCache) Save(identity ClientIdentity) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("prepare identity cache dir: %w", err)
	}
	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write identity cache: %w", err)
	}
	return nil
}

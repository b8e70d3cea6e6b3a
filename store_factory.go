package tmolockd

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage/bolt"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage/disk"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage/memory"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage/redis"
)

func openBackend(cfg Config) (storage.Backend, string, error) {
	u, err := url.Parse(cfg.Store)
	if err != nil {
		return nil, "", fmt.Errorf("parse store URL: %w", err)
	}
	switch u.Scheme {
	case "memory", "mem", "":
		return memory.New(), "memory", nil
	case "disk":
		root, err := storePathFromURL(u, "disk store path required (e.g. disk:///var/lib/tmolockd-data)")
		if err != nil {
			return nil, "", err
		}
		backend, err := disk.New(root)
		if err != nil {
			return nil, "", err
		}
		return backend, "disk", nil
	case "bolt":
		path, err := storePathFromURL(u, "bolt store path required (e.g. bolt:///var/lib/tmolockd/locks.db)")
		if err != nil {
			return nil, "", err
		}
		backend, err := bolt.New(path)
		if err != nil {
			return nil, "", err
		}
		return backend, "bolt", nil
	case "redis", "rediss":
		backend, err := redis.Open(cfg.Store)
		if err != nil {
			return nil, "", err
		}
		return backend, "redis", nil
	default:
		return nil, "", fmt.Errorf("store scheme %q not supported", u.Scheme)
	}
}

// storePathFromURL merges host and path so both disk:///data and disk://data
// resolve to a filesystem path.
func storePathFromURL(u *url.URL, hint string) (string, error) {
	pathPart := strings.TrimSpace(u.Path)
	host := strings.TrimSpace(u.Host)
	if host != "" {
		if pathPart == "" || pathPart == "/" {
			pathPart = "/" + host
		} else {
			pathPart = "/" + host + "/" + strings.TrimPrefix(pathPart, "/")
		}
	}
	if pathPart == "" || pathPart == "/" {
		return "", fmt.Errorf("%s", hint)
	}
	return filepath.Clean(pathPart), nil
}

package tmolockd

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultListen is the default TCP endpoint the server binds to.
	DefaultListen = ":9346"
	// DefaultMetricsListen is the default Prometheus scrape endpoint. Empty
	// disables the metrics listener unless explicitly configured.
	DefaultMetricsListen = ""
	// DefaultStore points the server at the in-memory backend when no store
	// is provided.
	DefaultStore = "mem://"
	// DefaultLockDuration is the baseline lock lifetime applied when an
	// acquire omits a duration.
	DefaultLockDuration = 2 * time.Hour
	// DefaultMaxLockDuration is the hard ceiling enforced on user-supplied
	// lock durations.
	DefaultMaxLockDuration = 365 * 24 * time.Hour
	// DefaultShutdownTimeout caps how long graceful shutdown may take.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config describes the server configuration surface.
type Config struct {
	// Listen is the TCP address the HTTP API binds to.
	Listen string
	// MetricsListen is the address for the Prometheus scrape endpoint.
	// Empty disables metrics serving.
	MetricsListen string
	// Store selects the backend: mem://, disk:///path, bolt:///path or
	// redis://host:port/db.
	Store string
	// DefaultDuration is the lock lifetime applied when an acquire omits a
	// duration.
	DefaultDuration time.Duration
	// MaxDuration caps the accepted lock duration.
	MaxDuration time.Duration
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Validate fills defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if _, err := url.Parse(c.Store); err != nil {
		return fmt.Errorf("config: parse store URL: %w", err)
	}
	if c.DefaultDuration == 0 {
		c.DefaultDuration = DefaultLockDuration
	}
	if c.DefaultDuration < 0 {
		return fmt.Errorf("config: default duration must be positive")
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = DefaultMaxLockDuration
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("config: max duration must be positive")
	}
	if c.DefaultDuration > c.MaxDuration {
		return fmt.Errorf("config: default duration %v exceeds max duration %v", c.DefaultDuration, c.MaxDuration)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: shutdown timeout must be positive")
	}
	return nil
}

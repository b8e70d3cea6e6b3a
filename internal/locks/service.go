// Package locks implements the lock state machine over a storage.Backend.
//
// A record is live while the clock is strictly before its expiry. Expired
// records are evicted lazily by the next Check of that record id; there is
// no background sweeper. Acquire always overwrites, even over a live lock,
// last writer wins.
package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/internal/clock"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

// Duration bounds applied when the caller does not configure its own.
const (
	DefaultDuration = 2 * time.Hour
	MaxDuration     = 365 * 24 * time.Hour
)

// ValidationError reports a rejected Acquire or Release input. Code is a
// stable machine readable identifier suitable for the wire.
type ValidationError struct {
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Config wires a Service.
type Config struct {
	// Backend is the keyed store holding lock records. Required.
	Backend storage.Backend
	// Clock supplies the time source; defaults to clock.Real.
	Clock clock.Clock
	// DefaultDuration applies when an acquire omits a duration.
	DefaultDuration time.Duration
	// MaxDuration caps the accepted acquire duration.
	MaxDuration time.Duration
	// Logger receives debug events; defaults to a noop logger.
	Logger pslog.Logger
}

// Service is the authoritative lock state machine. It is stateless apart
// from the backend and safe for concurrent use.
type Service struct {
	backend         storage.Backend
	clock           clock.Clock
	defaultDuration time.Duration
	maxDuration     time.Duration
	logger          pslog.Logger
}

// NewService validates cfg, fills defaults and returns a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("locks: backend required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = MaxDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = pslog.NoopLogger()
	}
	if cfg.DefaultDuration > cfg.MaxDuration {
		return nil, fmt.Errorf("locks: default duration %v exceeds max %v", cfg.DefaultDuration, cfg.MaxDuration)
	}
	return &Service{
		backend:         cfg.Backend,
		clock:           cfg.Clock,
		defaultDuration: cfg.DefaultDuration,
		maxDuration:     cfg.MaxDuration,
		logger:          cfg.Logger,
	}, nil
}

// AcquireParams carries the validated inputs of an Acquire call.
type AcquireParams struct {
	RecordID    string
	HolderName  string
	HolderGroup string
	// DurationMinutes is how long the lock should live. Nil means the
	// service default applies; an explicit zero or negative value is a
	// validation error.
	DurationMinutes *int64
}

// Check returns the live record for recordID, or nil when the record is
// free. A stored record whose expiry has passed is deleted before reporting
// free; a stale record is never reported as held.
func (s *Service) Check(ctx context.Context, recordID string) (*storage.Record, error) {
	if recordID = strings.TrimSpace(recordID); recordID == "" {
		return nil, &ValidationError{Code: "missing_record_id", Detail: "record id required"}
	}
	record, err := s.backend.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("check %q: %w", recordID, err)
	}
	now := s.clock.Now()
	if now.Unix() < record.ExpiresAtUnix {
		return record, nil
	}
	// Lazy eviction: the delete must succeed before the record may be
	// reported free, otherwise a later writer could resurrect stale state.
	if err := s.backend.Delete(ctx, recordID); err != nil {
		return nil, fmt.Errorf("evict expired lock %q: %w", recordID, err)
	}
	s.logger.Debug("locks.evicted_expired", "record_id", recordID, "holder_name", record.HolderName, "expired_at_unix", record.ExpiresAtUnix)
	return nil, nil
}

// Acquire validates params and unconditionally stores a new lock record,
// replacing whatever was there. There is no "already held" rejection; the
// client protocol's confirmation step is the only takeover guard.
func (s *Service) Acquire(ctx context.Context, params AcquireParams) (*storage.Record, error) {
	recordID := strings.TrimSpace(params.RecordID)
	holderName := strings.TrimSpace(params.HolderName)
	holderGroup := strings.TrimSpace(params.HolderGroup)
	if recordID == "" {
		return nil, &ValidationError{Code: "missing_record_id", Detail: "record id required"}
	}
	if holderName == "" {
		return nil, &ValidationError{Code: "missing_holder_name", Detail: "holder name required"}
	}
	if holderGroup == "" {
		return nil, &ValidationError{Code: "missing_holder_group", Detail: "holder group required"}
	}
	duration := s.defaultDuration
	if params.DurationMinutes != nil {
		maxMinutes := int64(s.maxDuration / time.Minute)
		minutes := *params.DurationMinutes
		if minutes < 1 || minutes > maxMinutes {
			return nil, &ValidationError{
				Code:   "invalid_duration",
				Detail: fmt.Sprintf("duration must be between 1 and %d minutes", maxMinutes),
			}
		}
		duration = time.Duration(minutes) * time.Minute
	}

	now := s.clock.Now()
	record := &storage.Record{
		RecordID:       recordID,
		HolderName:     holderName,
		HolderGroup:    holderGroup,
		AcquiredAtUnix: now.Unix(),
		ExpiresAtUnix:  now.Add(duration).Unix(),
	}
	if err := s.backend.Put(ctx, recordID, record); err != nil {
		return nil, fmt.Errorf("acquire %q: %w", recordID, err)
	}
	s.logger.Debug("locks.acquired", "record_id", recordID, "holder_name", holderName, "holder_group", holderGroup, "expires_at_unix", record.ExpiresAtUnix)
	return record, nil
}

// Release deletes the record for recordID. Releasing a free record succeeds,
// the operation is idempotent so the client retry layer can repeat it.
func (s *Service) Release(ctx context.Context, recordID string) error {
	if recordID = strings.TrimSpace(recordID); recordID == "" {
		return &ValidationError{Code: "missing_record_id", Detail: "record id required"}
	}
	if err := s.backend.Delete(ctx, recordID); err != nil {
		return fmt.Errorf("release %q: %w", recordID, err)
	}
	s.logger.Debug("locks.released", "record_id", recordID)
	return nil
}

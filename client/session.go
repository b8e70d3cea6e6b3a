package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/api"
)

// ClientIdentity is the caller's self-reported identity, threaded
// explicitly through acquire calls. It is advisory only: the server never
// verifies it and it has no bearing on lock correctness.
type ClientIdentity struct {
	// Name is the display name stored as the lock holder.
	Name string `json:"name"`
	// Group is the holder's team or area label.
	Group string `json:"group"`
	// DurationMinutes is the preferred lock lifetime.
	DurationMinutes int64 `json:"duration_minutes"`
}

// Prompter collects user input for the session. Implementations prefill the
// form from the supplied defaults.
type Prompter interface {
	// LockDetails asks for holder name, group and duration. Returning
	// false aborts the acquire.
	LockDetails(defaults ClientIdentity) (ClientIdentity, bool)
	// ConfirmRelease asks before releasing. When own is false the record
	// belongs to someone else and the implementation must warn that the
	// release forces another holder's lock away.
	ConfirmRelease(record *api.LockRecord, own bool) bool
}

// View renders session state. Implementations are UI shells; the session
// only guarantees which of these is called for which outcome.
type View interface {
	// ShowFree renders the record as lockable.
	ShowFree(recordID string)
	// ShowLocked renders the current holder.
	ShowLocked(recordID string, record *api.LockRecord)
	// ShowBusy renders a transient in-progress indicator.
	ShowBusy(recordID string)
	// ShowError renders a terminal failure with a way to retry the
	// triggering action.
	ShowError(recordID string, err error)
}

// IdentityCache persists the last-used identity between sessions.
type IdentityCache interface {
	Load() (ClientIdentity, error)
	Save(ClientIdentity) error
}

// Session drives the lock lifecycle for whichever record the UI currently
// displays. Responses that resolve after the user has navigated to another
// record are discarded rather than rendered.
type Session struct {
	client   *Client
	prompter Prompter
	view     View
	cache    IdentityCache
	logger   pslog.Logger

	mu         sync.Mutex
	generation uint64
	recordID   string
	identity   ClientIdentity
}

// SessionConfig wires a Session.
type SessionConfig struct {
	// Client performs the lock calls. Required.
	Client *Client
	// Prompter collects user input. Required.
	Prompter Prompter
	// View renders outcomes. Required.
	View View
	// Cache persists the last-used identity; nil disables persistence.
	Cache IdentityCache
	// Identity seeds the acquire form when the cache is empty.
	Identity ClientIdentity
	// Logger receives debug events; defaults to a noop logger.
	Logger pslog.Logger
}

// NewSession validates cfg and returns a Session. The identity cache, when
// configured, is read once here and never consulted again until Save.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client required")
	}
	if cfg.Prompter == nil {
		return nil, fmt.Errorf("prompter required")
	}
	if cfg.View == nil {
		return nil, fmt.Errorf("view required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	identity := cfg.Identity
	if cfg.Cache != nil {
		if cached, err := cfg.Cache.Load(); err == nil && cached.Name != "" {
			identity = cached
		}
	}
	return &Session{
		client:   cfg.Client,
		prompter: cfg.Prompter,
		view:     cfg.View,
		cache:    cfg.Cache,
		logger:   logger,
		identity: identity,
	}, nil
}

// Identity returns the identity the next acquire form will be prefilled
// with.
func (s *Session) Identity() ClientIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// begin records that recordID is now the displayed record and returns the
// generation token in-flight calls must present to render their result.
func (s *Session) begin(recordID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.recordID = recordID
	return s.generation
}

// current returns the generation token for follow-up calls on the record
// already displayed.
func (s *Session) current() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID, s.generation
}

// fresh reports whether a response produced under gen may still be
// rendered.
func (s *Session) fresh(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}

// Navigate switches the session to recordID and refreshes its lock state.
// Any response still in flight for the previous record becomes stale and is
// dropped when it resolves.
func (s *Session) Navigate(ctx context.Context, recordID string) error {
	gen := s.begin(recordID)
	return s.refresh(ctx, recordID, gen)
}

func (s *Session) refresh(ctx context.Context, recordID string, gen uint64) error {
	record, err := s.client.Check(ctx, recordID)
	if !s.fresh(gen) {
		s.logger.Debug("session.stale_response_dropped", "record_id", recordID, "operation", "check")
		return nil
	}
	if err != nil {
		s.view.ShowError(recordID, err)
		return err
	}
	if record == nil {
		s.view.ShowFree(recordID)
	} else {
		s.view.ShowLocked(recordID, record)
	}
	return nil
}

// Lock collects holder details, acquires the displayed record and then
// re-checks it so the view reflects the server's state rather than an
// optimistic local update.
func (s *Session) Lock(ctx context.Context) error {
	recordID, gen := s.current()
	if recordID == "" {
		return fmt.Errorf("no record displayed")
	}

	details, ok := s.prompter.LockDetails(s.Identity())
	if !ok {
		return nil
	}
	s.view.ShowBusy(recordID)

	var durationMinutes *int64
	if details.DurationMinutes != 0 {
		d := details.DurationMinutes
		durationMinutes = &d
	}
	_, err := s.client.Acquire(ctx, api.AcquireRequest{
		RecordID:        recordID,
		HolderName:      details.Name,
		HolderGroup:     details.Group,
		DurationMinutes: durationMinutes,
	})
	if !s.fresh(gen) {
		s.logger.Debug("session.stale_response_dropped", "record_id", recordID, "operation", "acquire")
		return nil
	}
	if err != nil {
		s.view.ShowError(recordID, err)
		return err
	}

	s.rememberIdentity(details)
	return s.refresh(ctx, recordID, gen)
}

// Unlock releases the displayed record after confirmation. When the lock
// belongs to someone else the prompter must obtain an explicit force
// confirmation; this is a social safeguard, not authorization, so a
// confirmed release always proceeds.
func (s *Session) Unlock(ctx context.Context) error {
	recordID, gen := s.current()
	if recordID == "" {
		return fmt.Errorf("no record displayed")
	}

	record, err := s.client.Check(ctx, recordID)
	if !s.fresh(gen) {
		s.logger.Debug("session.stale_response_dropped", "record_id", recordID, "operation", "check")
		return nil
	}
	if err != nil {
		s.view.ShowError(recordID, err)
		return err
	}
	if record == nil {
		s.view.ShowFree(recordID)
		return nil
	}

	own := strings.EqualFold(strings.TrimSpace(record.HolderName), strings.TrimSpace(s.Identity().Name))
	if !s.prompter.ConfirmRelease(record, own) {
		return nil
	}
	s.view.ShowBusy(recordID)

	_, err = s.client.Release(ctx, recordID)
	if !s.fresh(gen) {
		s.logger.Debug("session.stale_response_dropped", "record_id", recordID, "operation", "release")
		return nil
	}
	if err != nil {
		s.view.ShowError(recordID, err)
		return err
	}
	return s.refresh(ctx, recordID, gen)
}

func (s *Session) rememberIdentity(identity ClientIdentity) {
	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(identity); err != nil {
		// The cache is advisory; a failed save must not fail the acquire.
		s.logger.Debug("session.identity_cache_save_failed", "error", err)
	}
}

// Package client implements the Go client for the tmolockd lock service:
// the HTTP calls, the transport-failure retry discipline, and the
// session-level decision logic a UI shell drives.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/api"
	"github.com/EdwinVallejo/SalesforceTMO/internal/clock"
)

const headerCorrelationID = "X-Correlation-Id"

// Retry defaults. Only transport failures are retried; application
// outcomes, including validation errors, return immediately.
const (
	// DefaultAttempts is the total number of tries per logical operation.
	DefaultAttempts = 3
	// DefaultBaseDelay is the backoff before the first retry; it doubles
	// per attempt (1s, 2s, ...).
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps exponential backoff growth.
	DefaultMaxDelay = 8 * time.Second
	// DefaultMultiplier is the exponential growth factor between retries.
	DefaultMultiplier = 2.0
	// DefaultRequestTimeout bounds each individual attempt.
	DefaultRequestTimeout = 10 * time.Second
)

// ErrCommunication is the terminal outcome after the retry bound is
// exhausted. Use errors.Is to detect it.
var ErrCommunication = errors.New("communication failure")

// APIError is a non-2xx application outcome from the server. It is never
// retried.
type APIError struct {
	// Status is the HTTP status code returned by the server.
	Status int
	// Response is the decoded error envelope, when available.
	Response api.ErrorResponse
	// Body contains the raw response body for diagnostics.
	Body []byte
}

func (e *APIError) Error() string {
	if e.Response.ErrorCode != "" {
		return fmt.Sprintf("tmolockd: %s (%s)", e.Response.ErrorCode, e.Response.Detail)
	}
	return fmt.Sprintf("tmolockd: status %d", e.Status)
}

// Client talks to one tmolockd server.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         pslog.Logger
	clock          clock.Clock
	attempts       int
	baseDelay      time.Duration
	maxDelay       time.Duration
	multiplier     float64
	requestTimeout time.Duration
}

// Option customises client construction.
type Option func(*Client)

// WithHTTPClient supplies a custom HTTP client/transport stack.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		if cli != nil {
			c.httpClient = cli
		}
	}
}

// WithLogger overrides the client logger.
func WithLogger(l pslog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for backoff sleeps; tests use a
// manual clock here.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithAttempts overrides the total number of tries per operation.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff adjusts the retry backoff parameters.
func WithBackoff(base, max time.Duration, multiplier float64) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
		if multiplier > 0 {
			c.multiplier = multiplier
		}
	}
}

// WithRequestTimeout bounds each individual attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// New constructs a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("baseURL required")
	}
	c := &Client{
		baseURL:        trimmed,
		httpClient:     http.DefaultClient,
		logger:         pslog.NoopLogger(),
		clock:          clock.Real{},
		attempts:       DefaultAttempts,
		baseDelay:      DefaultBaseDelay,
		maxDelay:       DefaultMaxDelay,
		multiplier:     DefaultMultiplier,
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Check returns the live lock for recordID or nil when the record is free.
func (c *Client) Check(ctx context.Context, recordID string) (*api.LockRecord, error) {
	var record *api.LockRecord
	err := c.doRetry(ctx, "check", func(ctx context.Context) error {
		var got api.LockRecord
		err := c.do(ctx, http.MethodGet, c.lockPath(recordID), nil, &got, http.StatusOK)
		if err != nil {
			return err
		}
		record = &got
		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound && apiErr.Response.ErrorCode == api.ErrorCodeRecordFree {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Acquire stores a new lock for the requested record, overwriting any
// existing one.
func (c *Client) Acquire(ctx context.Context, req api.AcquireRequest) (*api.AcquireResponse, error) {
	var resp api.AcquireResponse
	err := c.doRetry(ctx, "acquire", func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/v1/locks", req, &resp, http.StatusCreated)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Release removes the lock for recordID. Releasing a free record succeeds.
func (c *Client) Release(ctx context.Context, recordID string) (*api.ReleaseResponse, error) {
	var resp api.ReleaseResponse
	err := c.doRetry(ctx, "release", func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, c.lockPath(recordID), nil, &resp, http.StatusOK)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) lockPath(recordID string) string {
	return "/v1/locks/" + url.PathEscape(recordID)
}

// doRetry runs fn up to the attempt bound, sleeping an exponentially
// growing delay between tries. Only transport failures retry; application
// outcomes return immediately. Blind retry of a failed acquire could
// re-apply a stale duration, which is accepted here in exchange for one
// retry policy across all operations.
func (c *Client) doRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	delay := c.baseDelay
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.requestTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if !isTransportError(err) {
			return err
		}
		lastErr = err
		c.logger.Debug("client.attempt_failed", "operation", operation, "attempt", attempt, "of", c.attempts, "error", err)
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(delay):
		}
		next := time.Duration(float64(delay) * c.multiplier)
		if next > c.maxDelay {
			next = c.maxDelay
		}
		delay = next
	}
	return fmt.Errorf("%s failed after %d attempts: %w: %w", operation, c.attempts, ErrCommunication, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, wantStatus int) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerCorrelationID, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return decodeError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{Status: resp.StatusCode, Body: data}
		}
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: body}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr.Response)
	}
	return apiErr
}

// isTransportError separates retryable network failures from application
// outcomes and caller cancellation. Errors outside the recognized network
// shapes are treated as deterministic and returned without further attempts.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

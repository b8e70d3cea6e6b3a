package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/EdwinVallejo/SalesforceTMO/api"
	"github.com/EdwinVallejo/SalesforceTMO/client"
)

// stubClock satisfies the client's clock without real sleeping. Every After
// fires immediately and the requested delay is recorded.
type stubClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *stubClock) Sleep(d time.Duration) {
	<-c.After(d)
}

func (c *stubClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// scriptedTransport returns each scripted result in order and counts calls.
type scriptedTransport struct {
	mu      sync.Mutex
	script  []func(*http.Request) (*http.Response, error)
	calls   int
	lastReq *http.Request
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.calls
	t.calls++
	t.lastReq = req
	if idx >= len(t.script) {
		idx = len(t.script) - 1
	}
	return t.script[idx](req)
}

func (t *scriptedTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func transportFailure(*http.Request) (*http.Response, error) {
	return nil, fmt.Errorf("dial tcp: connection refused")
}

func jsonResponse(status int, payload any) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader(data)),
		}, nil
	}
}

func newTestClient(t *testing.T, transport http.RoundTripper, clk *stubClock) *client.Client {
	t.Helper()
	c, err := client.New("http://lockd.test",
		client.WithHTTPClient(&http.Client{Transport: transport}),
		client.WithClock(clk),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := client.New("   "); err == nil {
		t.Fatal("expected error for blank baseURL")
	}
}

func TestRetrySucceedsAfterTwoTransportFailures(t *testing.T) {
	t.Parallel()

	record := api.LockRecord{RecordID: "001xyz", HolderName: "Ana", HolderGroup: "QA", AcquiredAt: 100, ExpiresAt: 7300}
	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		transportFailure,
		transportFailure,
		jsonResponse(http.StatusOK, record),
	}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c := newTestClient(t, transport, clk)

	got, err := c.Check(context.Background(), "001xyz")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got == nil || got.HolderName != "Ana" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if transport.callCount() != 3 {
		t.Fatalf("attempts = %d, want 3", transport.callCount())
	}
	sleeps := clk.recorded()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("backoff delays = %v, want [1s 2s]", sleeps)
	}
}

func TestRetryExhaustionReportsCommunicationFailure(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){transportFailure}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c := newTestClient(t, transport, clk)

	_, err := c.Check(context.Background(), "001xyz")
	if !errors.Is(err, client.ErrCommunication) {
		t.Fatalf("expected ErrCommunication, got %v", err)
	}
	if transport.callCount() != client.DefaultAttempts {
		t.Fatalf("attempts = %d, want %d", transport.callCount(), client.DefaultAttempts)
	}
	if sleeps := clk.recorded(); len(sleeps) != client.DefaultAttempts-1 {
		t.Fatalf("slept %d times, want %d", len(sleeps), client.DefaultAttempts-1)
	}
}

func TestApplicationErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		jsonResponse(http.StatusBadRequest, api.ErrorResponse{ErrorCode: "missing_holder_name", Detail: "holder name required"}),
	}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c := newTestClient(t, transport, clk)

	_, err := c.Acquire(context.Background(), api.AcquireRequest{RecordID: "001xyz"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Response.ErrorCode != "missing_holder_name" {
		t.Fatalf("error code = %q", apiErr.Response.ErrorCode)
	}
	if transport.callCount() != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on application outcome)", transport.callCount())
	}
	if sleeps := clk.recorded(); len(sleeps) != 0 {
		t.Fatalf("unexpected backoff sleeps: %v", sleeps)
	}
}

func TestCheckFreeRecordReturnsNil(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		jsonResponse(http.StatusNotFound, api.ErrorResponse{ErrorCode: api.ErrorCodeRecordFree}),
	}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c := newTestClient(t, transport, clk)

	record, err := c.Check(context.Background(), "001xyz")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record for free id, got %+v", record)
	}
	if transport.callCount() != 1 {
		t.Fatalf("attempts = %d, want 1", transport.callCount())
	}
}

func TestBackoffIsCappedAtMaxDelay(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){transportFailure}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c, err := client.New("http://lockd.test",
		client.WithHTTPClient(&http.Client{Transport: transport}),
		client.WithClock(clk),
		client.WithAttempts(5),
		client.WithBackoff(time.Second, 3*time.Second, 2),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.Check(context.Background(), "001xyz"); !errors.Is(err, client.ErrCommunication) {
		t.Fatalf("expected ErrCommunication, got %v", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	sleeps := clk.recorded()
	if len(sleeps) != len(want) {
		t.Fatalf("backoff delays = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("backoff delays = %v, want %v", sleeps, want)
		}
	}
}

func TestReleaseDecodesResponse(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		jsonResponse(http.StatusOK, api.ReleaseResponse{Released: true}),
	}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c := newTestClient(t, transport, clk)

	resp, err := c.Release(context.Background(), "001xyz")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !resp.Released {
		t.Fatal("expected released=true")
	}
	transport.mu.Lock()
	req := transport.lastReq
	transport.mu.Unlock()
	if req.Method != http.MethodDelete || req.URL.Path != "/v1/locks/001xyz" {
		t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
	}
}

func TestRecordIDIsPathEscaped(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{script: []func(*http.Request) (*http.Response, error){
		jsonResponse(http.StatusNotFound, api.ErrorResponse{ErrorCode: api.ErrorCodeRecordFree}),
	}}
	clk := &stubClock{now: time.Unix(0, 0)}
	c := newTestClient(t, transport, clk)

	if _, err := c.Check(context.Background(), "a/b c"); err != nil {
		t.Fatalf("check: %v", err)
	}
	transport.mu.Lock()
	req := transport.lastReq
	transport.mu.Unlock()
	if got := req.URL.EscapedPath(); got != "/v1/locks/a%2Fb%20c" {
		t.Fatalf("escaped path = %q", got)
	}
}

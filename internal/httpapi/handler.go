// Package httpapi exposes the lock service over HTTP+JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/api"
	"github.com/EdwinVallejo/SalesforceTMO/internal/locks"
)

const headerCorrelationID = "X-Correlation-Id"

const acquireBodyLimit = 16 << 10

type ctxKeyCorrelation struct{}

// Handler routes lock requests to the service and renders JSON responses.
type Handler struct {
	service *locks.Service
	logger  pslog.Logger
	metrics *metrics
}

// Config wires a Handler.
type Config struct {
	// Service performs the actual lock operations. Required.
	Service *locks.Service
	// Logger receives request logs; defaults to a noop logger.
	Logger pslog.Logger
	// Metrics collects per-operation counters and latencies; nil disables
	// collection.
	Metrics *Metrics
}

// New returns a Handler ready to Register on a mux.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	h := &Handler{
		service: cfg.Service,
		logger:  logger,
	}
	if cfg.Metrics != nil {
		h.metrics = cfg.Metrics.inner
	}
	return h
}

// Register installs all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET /v1/locks/{record}", h.wrap("check", h.handleCheck))
	mux.Handle("POST /v1/locks", h.wrap("acquire", h.handleAcquire))
	mux.Handle("DELETE /v1/locks/{record}", h.wrap("release", h.handleRelease))
	mux.Handle("GET /healthz", h.wrap("healthz", h.handleHealth))
	mux.Handle("GET /readyz", h.wrap("readyz", h.handleReady))
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (h *Handler) wrap(operation string, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		reqID := xid.New().String()
		logger := h.logger.With(
			"sys", "httpapi",
			"op", operation,
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
		)

		corr := normalizeCorrelation(r.Header.Get(headerCorrelationID))
		if corr == "" {
			corr = uuid.NewString()
		}
		logger = logger.With("cid", corr)
		ctx = context.WithValue(ctx, ctxKeyCorrelation{}, corr)
		ctx = pslog.ContextWithLogger(ctx, logger)
		r = r.WithContext(ctx)
		w.Header().Set(headerCorrelationID, corr)

		logger.Trace("http.request.start", "remote_addr", r.RemoteAddr)

		if err := fn(w, r); err != nil {
			logger.Debug("http.request.error", "elapsed", time.Since(start), "error", err)
			h.observe(operation, "error", time.Since(start))
			h.handleError(ctx, w, err)
			return
		}
		h.observe(operation, "ok", time.Since(start))
		logger.Trace("http.request.complete", "elapsed", time.Since(start))
	})
}

func (h *Handler) observe(operation, result string, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.requests.WithLabelValues(operation, result).Inc()
	h.metrics.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// correlationID returns the correlation value stored by wrap.
func correlationID(ctx context.Context) string {
	corr, _ := ctx.Value(ctxKeyCorrelation{}).(string)
	return corr
}

// normalizeCorrelation accepts caller supplied correlation values only when
// they are short printable ASCII.
func normalizeCorrelation(raw string) string {
	corr := strings.TrimSpace(raw)
	if corr == "" || len(corr) > 128 {
		return ""
	}
	for _, r := range corr {
		if r < 0x20 || r > 0x7e {
			return ""
		}
	}
	return corr
}

type httpError struct {
	Status int
	Code   string
	Detail string
}

func (e httpError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return e.Code
}

func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := pslog.LoggerFromContext(ctx)
	if logger == nil {
		logger = h.logger
	}
	var httpErr httpError
	if errors.As(err, &httpErr) {
		logger.Debug("http.request.failure", "status", httpErr.Status, "code", httpErr.Code, "detail", httpErr.Detail)
		h.writeJSON(w, httpErr.Status, api.ErrorResponse{ErrorCode: httpErr.Code, Detail: httpErr.Detail})
		return
	}
	logger.Error("http.request.internal_error", "error", err)
	h.writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{ErrorCode: api.ErrorCodeInternal, Detail: "internal server error"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(body io.Reader, dst any) error {
	if body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unexpected trailing JSON value")
}

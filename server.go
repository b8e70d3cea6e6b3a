package tmolockd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"pkt.systems/pslog"

	"github.com/EdwinVallejo/SalesforceTMO/internal/clock"
	"github.com/EdwinVallejo/SalesforceTMO/internal/httpapi"
	"github.com/EdwinVallejo/SalesforceTMO/internal/locks"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
	loggingbackend "github.com/EdwinVallejo/SalesforceTMO/internal/storage/logging"
)

// Server wraps the HTTP server, the storage backend and the lock service.
type Server struct {
	cfg          Config
	logger       pslog.Logger
	backend      storage.Backend
	ownedBackend bool
	service      *locks.Service
	handler      *httpapi.Handler
	httpSrv      *http.Server
	metricsSrv   *http.Server
	listener     net.Listener
	metricsLn    net.Listener
	clock        clock.Clock

	mu        sync.Mutex
	shutdown  bool
	readyOnce sync.Once
	readyCh   chan struct{}
}

// Option configures server instances.
type Option func(*options)

type options struct {
	Logger  pslog.Logger
	Backend storage.Backend
	Clock   clock.Clock
}

// WithLogger overrides the server logger.
func WithLogger(l pslog.Logger) Option {
	return func(o *options) {
		o.Logger = l
	}
}

// WithBackend injects a pre-built storage backend. The server will not close
// an injected backend on shutdown.
func WithBackend(b storage.Backend) Option {
	return func(o *options) {
		o.Backend = b
	}
}

// WithClock overrides the time source, used by tests to drive expiry.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.Clock = c
	}
}

// NewServer validates cfg and assembles a server that is ready to Start.
func NewServer(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.Logger
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	clk := o.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	backend := o.Backend
	backendName := "injected"
	ownedBackend := false
	if backend == nil {
		var err error
		backend, backendName, err = openBackend(cfg)
		if err != nil {
			return nil, err
		}
		ownedBackend = true
	}
	backend = loggingbackend.Wrap(backend, logger, backendName)

	service, err := locks.NewService(locks.Config{
		Backend:         backend,
		Clock:           clk,
		DefaultDuration: cfg.DefaultDuration,
		MaxDuration:     cfg.MaxDuration,
		Logger:          logger,
	})
	if err != nil {
		if ownedBackend {
			_ = backend.Close()
		}
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := httpapi.New(httpapi.Config{
		Service: service,
		Logger:  logger,
		Metrics: httpapi.NewMetrics(registry),
	})
	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &Server{
		cfg:          cfg,
		logger:       logger.With("sys", "server"),
		backend:      backend,
		ownedBackend: ownedBackend,
		service:      service,
		handler:      handler,
		httpSrv:      &http.Server{Handler: mux},
		clock:        clk,
		readyCh:      make(chan struct{}),
	}
	if cfg.MetricsListen != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv.metricsSrv = &http.Server{Handler: metricsMux}
	}
	return srv, nil
}

// Handler exposes the HTTP handler for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start binds the listeners and serves until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen (%s): %w", s.cfg.Listen, err)
	}
	s.listener = ln

	if s.metricsSrv != nil {
		mln, err := net.Listen("tcp", s.cfg.MetricsListen)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen metrics (%s): %w", s.cfg.MetricsListen, err)
		}
		s.metricsLn = mln
		go func() {
			if err := s.metricsSrv.Serve(mln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics serve failed", "error", err)
			}
		}()
	}

	s.signalReady()
	s.logger.Info("listening", "address", ln.Addr().String(), "store", s.cfg.Store, "metrics", s.cfg.MetricsListen)

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	if err := s.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
	}
	if l := s.listener; l != nil {
		_ = l.Close()
		s.listener = nil
	}
	if l := s.metricsLn; l != nil {
		_ = l.Close()
		s.metricsLn = nil
	}
	if s.ownedBackend {
		if err := s.backend.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the server down using a background context.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

func (s *Server) signalReady() {
	s.readyOnce.Do(func() {
		close(s.readyCh)
	})
}

// WaitUntilReady blocks until the listener is bound or ctx ends.
func (s *Server) WaitUntilReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListenerAddr returns the bound listener address once available.
func (s *Server) ListenerAddr() net.Addr {
	if l := s.listener; l != nil {
		return l.Addr()
	}
	return nil
}

// StartServer constructs and starts a server, returning it together with a
// stop function once the listener is ready. Cancelling ctx also stops the
// server.
func StartServer(ctx context.Context, cfg Config, opts ...Option) (*Server, func(context.Context) error, error) {
	srv, err := NewServer(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	waitCtx := ctx
	if waitCtx == nil {
		waitCtx = context.Background()
	}
	if err := srv.WaitUntilReady(waitCtx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil, nil, err
	}
	var (
		stopOnce sync.Once
		stopErr  error
	)
	stop := func(shutdownCtx context.Context) error {
		stopOnce.Do(func() {
			if shutdownCtx == nil {
				shutdownCtx = context.Background()
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				stopErr = err
				return
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				stopErr = err
			}
		})
		return stopErr
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			_ = stop(context.Background())
		}()
	}
	return srv, stop, nil
}

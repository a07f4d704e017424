// Package server exposes generation, analysis and progress tracking over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/metrics"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/pubsub"
	"github.com/agbru/lookforge/internal/store"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the components the handlers delegate to.
type Dependencies struct {
	Runner   *pipeline.Runner
	Analyzer pipeline.Executor
	Tracker  *progress.Tracker
	Registry *provider.Registry
	Events   pubsub.Subscriber
	// CrossNode lets the events endpoint follow sessions this node does not
	// track, which only makes sense when Events is backed by Redis.
	CrossNode bool
	Assets    store.AssetStore
	Metrics   *metrics.Registry
	Logger    logging.Logger
	Health    map[string]HealthCheck
}

// Config holds listener and lifecycle settings.
type Config struct {
	Addr            string
	Security        SecurityConfig
	ShutdownTimeout time.Duration
	// JobTimeout bounds one background generation.
	JobTimeout time.Duration
	// Heartbeat is the interval of SSE keep-alive comments.
	Heartbeat time.Duration
}

// Server is the HTTP front of the generation service.
type Server struct {
	cfg      Config
	runner   *pipeline.Runner
	analyzer pipeline.Executor
	tracker  *progress.Tracker
	registry *provider.Registry
	events   pubsub.Subscriber
	cross    bool
	assets   store.AssetStore
	metrics  *metrics.Registry
	logger   logging.Logger
	health   map[string]HealthCheck

	baseCtx context.Context
	jobs    sync.WaitGroup
}

// New builds a Server. Missing optional dependencies get in-process defaults.
func New(cfg Config, deps Dependencies) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Security.AllowedMethods == nil {
		cfg.Security = DefaultSecurityConfig()
	}
	if cfg.Security.MaxBodyBytes <= 0 {
		cfg.Security.MaxBodyBytes = DefaultSecurityConfig().MaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		runner:   deps.Runner,
		analyzer: deps.Analyzer,
		tracker:  deps.Tracker,
		registry: deps.Registry,
		events:   deps.Events,
		cross:    deps.CrossNode,
		assets:   deps.Assets,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		health:   deps.Health,
		baseCtx:  context.Background(),
	}
	if s.metrics == nil {
		s.metrics = metrics.NewRegistry()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	return s
}

// Handler returns the routed handler wrapped in the security and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/progress/{id}", s.handleProgress)
	mux.HandleFunc("GET /api/progress/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/assets", s.handleAssets)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return SecurityMiddleware(s.cfg.Security, s.metricsMiddleware(mux.ServeHTTP))
}

// Run serves until ctx is cancelled, then shuts down gracefully: the listener
// stops, in-flight requests and background jobs get ShutdownTimeout to finish,
// and remaining jobs are cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	s.baseCtx = jobCtx

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return jobCtx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", logging.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("http server shutting down")
		err := srv.Shutdown(shutdownCtx)

		done := make(chan struct{})
		go func() {
			s.jobs.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.logger.Info("cancelling unfinished generations")
			cancelJobs()
			<-done
		}
		return err
	})
	return g.Wait()
}

// Wait blocks until every background generation has returned.
func (s *Server) Wait() { s.jobs.Wait() }

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", err)
	}
}

type errorResponse struct {
	Error    string              `json:"error"`
	Attempts []apperrors.Attempt `json:"attempts,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	var allFailed apperrors.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		resp.Attempts = allFailed.Attempts
	}
	s.writeJSON(w, status, resp)
}

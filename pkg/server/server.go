// Package server exposes the workflow engine over HTTP: list the
// catalog, start runs, submit decisions and read event logs. Runs are
// held in memory; the service is a demo surface over the engine, not a
// durable store.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/gateflow/pkg/llms"
	"github.com/kadirpekel/gateflow/pkg/observability"
)

// Config holds the server settings.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration

	// DefaultRounds is used for round-based workflows when a run
	// request does not specify rounds.
	DefaultRounds int
}

// Server is the HTTP front end over the workflow engine.
type Server struct {
	cfg      Config
	provider llms.Provider
	metrics  *observability.Metrics
	logger   *slog.Logger
	registry *runRegistry
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics attaches the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server over the given provider.
func New(cfg Config, provider llms.Provider, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		provider: provider,
		logger:   slog.Default(),
		registry: newRunRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/workflows", s.handleListWorkflows)
		r.Post("/workflows/{workflow}/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/events", s.handleGetEvents)
		r.Post("/runs/{id}/decisions", s.handleSubmitDecision)
	})

	s.http = &http.Server{
		Addr:    cfg.Address,
		Handler: router,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the context is canceled, then drains connections
// within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening", "address", s.cfg.Address)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("server shutting down", "runs", s.registry.len())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

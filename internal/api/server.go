// Package api serves the worker's ops endpoints: health, Prometheus metrics
// and, when the journal is enabled, recent requests. It runs beside the
// request loop and never touches the symbol registry.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/scriptbridge/internal/journal"
)

// SymbolCounter reports the current registry size. It must be safe to call
// from the server's goroutines.
type SymbolCounter interface {
	Symbols() int
}

// RequestLister lists journaled requests, newest first.
type RequestLister interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Config holds ops server configuration
type Config struct {
	Listen  string
	Token   string
	Worker  string
	Profile string
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server represents the ops HTTP server
type Server struct {
	config    Config
	symbols   SymbolCounter
	metrics   http.Handler
	requests  RequestLister
	limiter   *clientLimiter
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new ops server. requests may be nil when the journal is
// disabled.
func New(config Config, symbols SymbolCounter, metrics http.Handler, requests RequestLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		symbols:   symbols,
		metrics:   metrics,
		requests:  requests,
		limiter:   newClientLimiter(config.RateLimit, config.RateBurst),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("ops server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("ops server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimitMiddleware)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics)
		}
		r.Get("/requests", s.handleRequests)
	})

	return r
}

// loggingMiddleware logs HTTP requests at debug level; scrapes are frequent.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

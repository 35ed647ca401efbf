// Package server provides the HTTP REST API for the skill verifier.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/db"
	"github.com/jonathan/skill-verifier/internal/integrity"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/pipeline"
	"github.com/jonathan/skill-verifier/internal/server/ratelimit"
	"github.com/jonathan/skill-verifier/internal/types"
)

// DefaultMaxUploadBytes bounds resume uploads
const DefaultMaxUploadBytes = 10 << 20

// AccountService serves account-wide language and topic summaries
type AccountService interface {
	AccountLanguages(ctx context.Context, username string, maxRepos int) (*types.AccountLanguages, error)
	AccountTechnologies(ctx context.Context, username string, maxRepos int) (*types.AccountTechnologies, error)
	AccountSummary(ctx context.Context, username string, maxRepos int) (*types.AccountSummary, error)
}

// Pinger reports backing store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Port           int
	MaxUploadBytes int64
	// AllowedOrigins lists CORS origins; empty allows any origin
	AllowedOrigins []string
	RateLimit      *ratelimit.Config
}

// Dependencies are the components behind the API
type Dependencies struct {
	Verifier *pipeline.Verifier
	Records  db.RecordStore
	Accounts AccountService
	Hasher   *integrity.Hasher
	Cache    cache.Store
	// Database is checked by /health when set
	Database Pinger
	Logger   *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	router      chi.Router
	deps        Dependencies
	cfg         Config
	logger      *zap.Logger
	rateLimiter *ratelimit.Limiter
}

// New creates a new server instance
func New(cfg Config, deps Dependencies) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		deps:        deps,
		cfg:         cfg,
		logger:      logging.Named(deps.Logger, "server"),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.withRequestID)
	r.Use(s.withLogging)
	r.Use(middleware.Recoverer)
	r.Use(s.withCORS)
	r.Use(s.withRateLimit)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/verify-skills", s.handleVerify)
		r.Post("/verify-skills/stream", s.handleVerifyStream)

		r.Get("/verifications/{id}", s.handleGetVerification)
		r.Get("/verifications/{id}/integrity", s.handleCheckIntegrity)

		r.Route("/accounts/{username}", func(r chi.Router) {
			r.Get("/languages", s.handleAccountLanguages)
			r.Get("/technologies", s.handleAccountTechnologies)
			r.Get("/summary", s.handleAccountSummary)
		})

		r.Post("/cache/clear", s.handleClearCache)
	})
	s.router = r

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for verification runs
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.rateLimiter.Stop()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.rateLimiter.Stop()
	if err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close releases background resources without serving
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and writes it, logging server-side failures
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String(logging.FieldRequest, requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	s.errorResponse(w, status, err.Error())
}

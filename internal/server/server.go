// Package server is a reference content source for the quiz: it serves
// incidents, validates answers and keeps per-session results.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/generator"
	"github.com/verte-zerg/killchain/internal/model"
)

const (
	defaultRatePerMinute = 100
	defaultBurst         = 20
	limiterIdle          = 30 * time.Minute
)

// Repository is the persistence the server needs.
type Repository interface {
	UpsertRound(ctx context.Context, round model.RoundState) error
	GetRound(ctx context.Context, sessionID string) (model.RoundState, error)
	RecordResult(ctx context.Context, result model.RoundResult) error
	SessionStats(ctx context.Context, sessionID string) (model.SessionAggregate, error)
	Leaderboard(ctx context.Context, limit int) ([]model.SessionAggregate, error)
	DeleteSession(ctx context.Context, sessionID string) error
	PruneSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config wires a Server.
type Config struct {
	Content   catalog.Content
	Store     Repository
	Generator *generator.Generator
	// RatePerMinute and Burst bound requests per session. Zero selects the
	// defaults; a negative rate disables throttling.
	RatePerMinute int
	Burst         int
	Logger        *slog.Logger
	Now           func() time.Time
}

// Server routes the /api endpoints.
type Server struct {
	content  catalog.Content
	store    Repository
	gen      *generator.Generator
	limiters *limiterSet
	log      *slog.Logger
	now      func() time.Time
	router   chi.Router
}

// New builds a Server and its routes.
func New(cfg Config) *Server {
	if cfg.Generator == nil {
		cfg.Generator = generator.New(0)
	}
	if cfg.RatePerMinute == 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{
		content:  cfg.Content,
		store:    cfg.Store,
		gen:      cfg.Generator,
		limiters: newLimiterSet(cfg.RatePerMinute, cfg.Burst, cfg.Now),
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chiMiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/get-phases", s.handlePhases)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Post("/get-log", s.handleGetLog)
		r.Post("/validate-phase", s.handleValidatePhase)
		r.Post("/validate-mitigation", s.handleValidateMitigation)
		r.Post("/statistics", s.handleStatistics)
		r.Post("/reset-session", s.handleReset)
	})
	return r
}

// Janitor prunes sessions idle longer than maxAge every interval until ctx
// is done.
func (s *Server) Janitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune(ctx, maxAge)
		}
	}
}

func (s *Server) prune(ctx context.Context, maxAge time.Duration) {
	n, err := s.store.PruneSessions(ctx, s.now().Add(-maxAge))
	if err != nil {
		s.log.Error("prune sessions", "error", err)
		return
	}
	swept := s.limiters.sweep(limiterIdle)
	if n > 0 || swept > 0 {
		s.log.Info("pruned idle sessions", "sessions", n, "limiters", swept)
	}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}

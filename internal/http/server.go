package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/config"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/logger"
	"github.com/RateThatLowballer/lowballer-discord-bot/internal/rating"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Ledger is the read and settings surface the handlers call directly.
type Ledger interface {
	TopSubjects(ctx context.Context, limit int, direction domain.Direction) ([]domain.Subject, error)
	SearchSubjects(ctx context.Context, substring string, limit int) ([]domain.Subject, error)
	GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error)
	PutSettings(ctx context.Context, settings domain.TenantSettings) (domain.TenantSettings, error)
}

// Workflows are the operations that need identity resolution.
type Workflows interface {
	Rate(ctx context.Context, req rating.RateRequest) (rating.RateResult, error)
	Profile(ctx context.Context, nameOrID string, recent int) (rating.ProfileView, error)
	Ratings(ctx context.Context, nameOrID string, limit, offset int) (string, []domain.Rating, error)
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	health    HealthChecker
	ledger    Ledger
	workflows Workflows
	logger    *logger.Logger
	router    chi.Router
	httpSrv   *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, l Ledger, workflows Workflows, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:       cfg,
		health:    health,
		ledger:    l,
		workflows: workflows,
		logger:    log,
		router:    r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Post("/ratings", s.handleSubmitRating)
	s.router.Get("/leaderboard", s.handleLeaderboard)
	s.router.Route("/subjects", func(r chi.Router) {
		r.Get("/", s.handleSearchSubjects)
		r.Route("/{nameOrId}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Get("/ratings", s.handleListRatings)
		})
	})
	s.router.Route("/tenants/{tenantId}/settings", func(r chi.Router) {
		r.Get("/", s.handleGetSettings)
		r.Put("/", s.handlePutSettings)
	})
}

// ServeHTTP lets the server be mounted or exercised directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start boots the HTTP server and blocks until ctx ends or it fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

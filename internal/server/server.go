// Package server wires configuration, storage, services and handlers into
// one chi router and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/avatar-vault/internal/auth"
	"github.com/sakif/avatar-vault/internal/config"
	"github.com/sakif/avatar-vault/internal/handler"
	"github.com/sakif/avatar-vault/internal/middleware"
	"github.com/sakif/avatar-vault/internal/repository"
	"github.com/sakif/avatar-vault/internal/repository/postgres"
	"github.com/sakif/avatar-vault/internal/repository/sqlite"
	"github.com/sakif/avatar-vault/internal/repository/sqlstore"
	"github.com/sakif/avatar-vault/internal/service"
)

// tokenBurst caps token requests per IP more tightly than the rest of the API.
const tokenBurst = 5

// Store is a repository the server owns and closes on shutdown.
type Store interface {
	repository.AvatarRepository
	io.Closer
}

type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  Store

	// stop ends the rate limiter sweepers.
	stop context.CancelFunc
}

// New opens the configured store and builds the router. The caller must
// call Start, or Close if it never starts the server.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store, logger)
}

// NewWithStore builds the router around an already opened store.
func NewWithStore(cfg *config.Config, store Store, logger *slog.Logger) (*Server, error) {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		stop:   stop,
	}
	if err := s.setupRoutes(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (Store, error) {
	opts := sqlstore.Options{
		Quota:     cfg.Avatars.Quota,
		OpTimeout: cfg.Database.OpTimeout,
		Logger:    logger,
	}
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(cfg.Database.URL, postgres.Options{
			MaxOpenConns: cfg.Database.MaxOpenConn,
			Options:      opts,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil
	case config.DriverSQLite:
		db, err := sqlite.New(cfg.Database.Path, sqlite.Options{
			BusyTimeout: cfg.Database.BusyTimeout,
			Options:     opts,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes installs global middleware in order (request id, real IP,
// access log, panic recovery, CORS, per-IP rate limit) and then:
//
//	GET    /health
//	POST   /api/auth/token                       (only with JWT_SECRET set)
//	GET    /api/users/{userID}/avatars
//	POST   /api/users/{userID}/avatars
//	GET    /api/users/{userID}/avatars/{avatarID}
//	PUT    /api/users/{userID}/avatars/{avatarID}
//	PATCH  /api/users/{userID}/avatars/{avatarID}
//	DELETE /api/users/{userID}/avatars/{avatarID}
func (s *Server) setupRoutes(ctx context.Context) error {
	limiter := middleware.NewIPRateLimiter(ctx, s.config.RateLimit.RPS, s.config.RateLimit.Burst)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORS.AllowedOrigins))
	s.router.Use(middleware.RateLimit(limiter, s.logger))

	avatarService := service.NewAvatarService(s.store, s.logger)
	s.router.Get("/health", handler.NewHealthHandler(avatarService, s.logger).HandleHealth)

	var authenticate func(http.Handler) http.Handler
	if s.config.Auth.Enabled() {
		tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.Issuer, s.config.Auth.JWTTTL)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		keys := auth.NewAPIKeyVerifier(s.config.Auth.APIKey, s.config.Auth.APIKeyHash)
		if !keys.Required() {
			s.logger.Warn("no API key configured, any caller can obtain tokens")
		}
		authHandler := handler.NewAuthHandler(service.NewAuthService(tokens, keys, s.logger), s.logger)

		tokenLimiter := middleware.NewIPRateLimiter(ctx, s.config.RateLimit.RPS/2, tokenBurst)
		s.router.With(middleware.RateLimit(tokenLimiter, s.logger)).
			Post("/api/auth/token", authHandler.HandleToken)

		authenticate = auth.RequireAuth(tokens)
	} else {
		s.logger.Warn("JWT_SECRET not set, authentication is disabled and callers act as the path user")
		authenticate = trustPathUser
	}

	if middleware.AllowsAnyOrigin(s.config.CORS.AllowedOrigins) {
		s.logger.Info("CORS allows any origin")
	}

	avatarHandler := handler.NewAvatarHandler(avatarService, s.logger)
	s.router.Route("/api/users/{userID}/avatars", func(r chi.Router) {
		r.Use(authenticate)
		avatarHandler.Routes(r)
	})
	return nil
}

// trustPathUser stands in for RequireAuth when no signing secret is
// configured: the caller is taken to be the user named in the path, with
// every scope. Only meant for local development.
func trustPathUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := &auth.Claims{Scope: auth.DefaultScopes}
		claims.Subject = chi.URLParam(r, "userID")
		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// Close releases the store and background goroutines.
func (s *Server) Close() error {
	s.stop()
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("driver", s.config.Database.Driver),
			slog.Int("quota", s.store.Quota()),
			slog.Bool("auth", s.config.Auth.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Package server is the web client's composition root: it opens browser
// storage, wires identity, session, services and handlers, defines the
// routes and runs the HTTP server until a shutdown signal.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/habit-tracker/internal/api"
	"github.com/sakif/habit-tracker/internal/auth"
	"github.com/sakif/habit-tracker/internal/config"
	"github.com/sakif/habit-tracker/internal/handler"
	"github.com/sakif/habit-tracker/internal/identity"
	"github.com/sakif/habit-tracker/internal/kv"
	"github.com/sakif/habit-tracker/internal/middleware"
	"github.com/sakif/habit-tracker/internal/repository"
	redisRepo "github.com/sakif/habit-tracker/internal/repository/redis"
	sqliteRepo "github.com/sakif/habit-tracker/internal/repository/sqlite"
	"github.com/sakif/habit-tracker/internal/service"
	"github.com/sakif/habit-tracker/internal/session"
	"github.com/sakif/habit-tracker/web"
)

const (
	janitorInterval = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
	// limiterIdle is how long a quiet IP keeps its auth rate bucket.
	limiterIdle = 10 * time.Minute
)

// Server holds the router and the resources it owns.
type Server struct {
	router   chi.Router
	config   *config.Config
	logger   *slog.Logger
	storage  repository.BrowserStorage
	registry *session.Registry
}

// New opens the configured browser storage and builds the Server.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	storage, err := openStorage(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, storage, logger, nil)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return s, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (repository.BrowserStorage, error) {
	switch cfg.StorageDriver {
	case config.DriverRedis:
		storage, err := redisRepo.New(ctx, cfg.RedisURL, cfg.StorageTTL)
		if err != nil {
			return nil, fmt.Errorf("opening redis storage: %w", err)
		}
		return storage, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	}
}

// newServer wires everything over storage. httpClient, when not nil, is
// used for calls to the identity provider and the backend (tests).
func newServer(cfg *config.Config, storage repository.BrowserStorage, logger *slog.Logger, httpClient *http.Client) (*Server, error) {
	idOpts := []identity.ClientOption{identity.WithLogger(logger)}
	apiOpts := []api.Option{api.WithLogger(logger)}
	if httpClient != nil {
		idOpts = append(idOpts, identity.WithHTTPClient(httpClient))
		apiOpts = append(apiOpts, api.WithHTTPClient(httpClient))
	}
	if cfg.IdentityJWTSecret != "" {
		// Hosted providers use their own issuer, so only the signature and
		// expiry are checked.
		verifier, err := auth.NewTokenService(cfg.IdentityJWTSecret, auth.WithIssuer(""))
		if err != nil {
			return nil, fmt.Errorf("creating token verifier: %w", err)
		}
		idOpts = append(idOpts, identity.WithVerifier(verifier))
	}

	idClient := identity.NewClient(cfg.IdentityURL, cfg.IdentityAPIKey, idOpts...)
	factory := func(storage kv.Store) identity.Provider {
		return identity.NewAuth(idClient, storage, identity.WithAuthLogger(logger))
	}
	registry := session.NewRegistry(storage, factory, logger,
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithStorageTTL(cfg.StorageTTL),
		session.WithSecureCookies(cfg.SecureCookies),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		storage:  storage,
		registry: registry,
	}

	backend := api.New(cfg.APIURL, session.ContextTokens{}, apiOpts...)
	if err := s.setupRoutes(backend); err != nil {
		registry.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes configures middleware and routes.
//
//	GET  /healthz, /static/*           no session
//	GET  /, /public                    session, no guard
//	GET  /auth/login, /auth/signup     session, no guard
//	POST /auth/login, /auth/signup     session, rate limited
//	POST /auth/logout                  session
//	/habits..., /profile               session + guard
func (s *Server) setupRoutes(backend service.Backend) error {
	pages, err := handler.NewRenderer(web.Templates, s.logger)
	if err != nil {
		return err
	}
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return err
	}

	authHandler := handler.NewAuthHandler(service.NewAuthService(s.logger), pages, s.logger)
	habitHandler := handler.NewHabitHandler(service.NewHabitService(backend, s.logger), pages, s.logger)
	profileHandler := handler.NewProfileHandler(service.NewProfileService(backend, s.logger), pages, s.logger)
	homeHandler := handler.NewHomeHandler(pages, s.registry)

	guard := session.NewGuard(s.config.GuardWait, pages.Checking())
	limiter := middleware.NewRateLimiter(s.config.AuthRate, s.config.AuthBurst, limiterIdle)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", homeHandler.HandleHealth)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.Group(func(r chi.Router) {
		r.Use(s.registry.Middleware)

		r.Get("/", homeHandler.HandleHome)
		r.Get("/public", habitHandler.HandlePublic)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.HandleLoginForm)
			r.Get("/signup", authHandler.HandleSignupForm)
			r.With(limiter.Middleware).Post("/login", authHandler.HandleLogin)
			r.With(limiter.Middleware).Post("/signup", authHandler.HandleSignup)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.Require)

			r.Get("/habits", habitHandler.HandleList)
			r.Get("/habits/new", habitHandler.HandleNew)
			r.Post("/habits/new", habitHandler.HandleCreate)
			r.Get("/habits/{id}", habitHandler.HandleEdit)
			r.Post("/habits/{id}", habitHandler.HandleUpdate)
			r.Get("/habits/{id}/delete", habitHandler.HandleDeleteConfirm)
			r.Post("/habits/{id}/delete", habitHandler.HandleDelete)

			r.Get("/profile", profileHandler.HandleShow)
			r.Post("/profile", profileHandler.HandleSave)
		})
	})

	return nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until SIGINT or SIGTERM, then shuts down in order: stop
// accepting requests, let in-flight ones finish (30s), release every
// session subscription, close storage.
func (s *Server) Start() error {
	defer s.storage.Close()
	defer s.registry.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go s.registry.Janitor(janitorCtx, janitorInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("api", s.config.APIURL),
			slog.String("identity", s.config.IdentityURL),
			slog.String("storage", s.config.StorageDriver),
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

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully", slog.Int("sessions", s.registry.Len()))
	}

	return nil
}

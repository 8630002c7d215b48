// Command devidp runs a local GoTrue-compatible identity provider so the web
// client and habitctl can be used without a hosted one.
//
//	IDENTITY_JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/devidp
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/habit-tracker/internal/auth"
	"github.com/sakif/habit-tracker/internal/config"
	"github.com/sakif/habit-tracker/internal/identity/devprovider"
	"github.com/sakif/habit-tracker/internal/logger"
	"github.com/sakif/habit-tracker/internal/middleware"
	"github.com/sakif/habit-tracker/internal/repository/sqlite"
)

func main() {
	cfg, err := config.LoadDevIDP(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Prefix: "devidp",
	}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("devidp error", slog.String("error", err.Error()))
		closeLog.Close()
		os.Exit(1)
	}
	closeLog.Close()
}

func run(cfg *config.DevIDP, log *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.WithAccessTTL(cfg.AccessTTL))
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		log.Warn("IDENTITY_API_KEY not set; the apikey header is not checked")
	}

	provider := devprovider.New(db, auth.NewPasswordService(), tokens, cfg.APIKey, log)
	router := provider.Routes()
	handler := chimiddleware.RequestID(middleware.Logger(log)(chimiddleware.Recoverer(router)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Info("devidp listening", slog.Int("port", cfg.Port), slog.String("database", cfg.DBPath))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Command server runs the habit tracker web client.
//
// Configuration comes from flags, the environment and an optional .env file;
// see internal/config. The process exits 1 on bad configuration or when the
// server fails.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/habit-tracker/internal/config"
	"github.com/sakif/habit-tracker/internal/logger"
	"github.com/sakif/habit-tracker/internal/server"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Prefix: "habit-server",
	}, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		closeLog.Close()
		os.Exit(1)
	}
	closeLog.Close()
}

func run(cfg *config.Config, log *slog.Logger) error {
	if cfg.IdentityJWTSecret == "" {
		log.Warn("IDENTITY_JWT_SECRET not set; access tokens are not verified")
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}

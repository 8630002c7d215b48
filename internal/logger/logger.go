// Package logger builds the process logger: log/slog on top of a
// charmbracelet/log handler, optionally teeing into a rotating file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures New.
type Config struct {
	Level  string // debug, info, warn or error
	File   string // optional rotating log file
	Prefix string // shown before every line, e.g. the binary name
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to w (usually os.Stderr) and, when
// cfg.File is set, to a lumberjack-rotated file. The closer releases the
// file and must be called on exit.
func New(cfg Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	level := charmlog.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = charmlog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("logger: %w", err)
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logger: creating log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(w, file)
		closer = file
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Prefix:          cfg.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		ReportCaller:    level == charmlog.DebugLevel,
	})

	return slog.New(handler), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

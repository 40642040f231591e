// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/NERVsystems/mapagent/pkg/config"
)

// New returns a logger writing to w. format is "json" or "text".
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the default logger from cfg. Output always goes to stderr:
// stdout carries the stdio transport. debug forces the debug level.
func Setup(cfg config.Log, debug bool) *slog.Logger {
	level := cfg.SlogLevel()
	if debug {
		level = slog.LevelDebug
	}
	logger := New(os.Stderr, level, cfg.Format)
	slog.SetDefault(logger)
	return logger
}

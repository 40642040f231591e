// Package testutil provides loggers and HTTP transport stubs for tests.
package testutil

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

// NewTestLogger returns a debug-level logger writing to w. A nil w discards.
func NewTestLogger(w io.Writer) *slog.Logger {
	if w == nil {
		return DiscardLogger()
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// DiscardLogger returns a logger that discards all output
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TLogger returns a logger whose output appears only when t fails or runs
// with -v.
func TLogger(t testing.TB) *slog.Logger {
	return NewTestLogger(tWriter{t})
}

type tWriter struct{ t testing.TB }

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

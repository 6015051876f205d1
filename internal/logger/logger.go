// Package logger provides structured logging setup for the pipeline.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// New creates a *slog.Logger writing JSON records to w with a "service"
// attribute on every record. Batch commands log to stderr so that
// report output on stdout stays machine-parsable.
func New(w io.Writer, level, service string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

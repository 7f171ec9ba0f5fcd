// Package logging provides structured JSON logging for the PGI toolkit.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with inversion-specific context fields.
type Logger struct {
	*slog.Logger
}

type contextKey string

const (
	fitIDKey   contextKey = "fit_id"
	buildIDKey contextKey = "build_id"
)

// New creates a Logger with JSON output on stdout.
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger with JSON output to the provided writer.
func NewWithWriter(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{Logger: slog.New(handler)}
}

// Nop returns a logger that discards everything. Used as the default by
// library entry points so callers are never forced to configure logging.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a new logger with additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithContext returns a logger with context values attached.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if fitID, ok := ctx.Value(fitIDKey).(string); ok && fitID != "" {
		logger = logger.With(slog.String("fit_id", fitID))
	}
	if buildID, ok := ctx.Value(buildIDKey).(string); ok && buildID != "" {
		logger = logger.With(slog.String("build_id", buildID))
	}

	return &Logger{Logger: logger}
}

// ContextWithFitID adds a fit identifier to the context.
func ContextWithFitID(ctx context.Context, fitID string) context.Context {
	return context.WithValue(ctx, fitIDKey, fitID)
}

// ContextWithBuildID adds a sensitivity build identifier to the context.
func ContextWithBuildID(ctx context.Context, buildID string) context.Context {
	return context.WithValue(ctx, buildIDKey, buildID)
}

// FitIDFromContext extracts the fit identifier from the context.
func FitIDFromContext(ctx context.Context) string {
	if fitID, ok := ctx.Value(fitIDKey).(string); ok {
		return fitID
	}
	return ""
}

// BuildIDFromContext extracts the build identifier from the context.
func BuildIDFromContext(ctx context.Context) string {
	if buildID, ok := ctx.Value(buildIDKey).(string); ok {
		return buildID
	}
	return ""
}

// Package logger builds the structured slog.Logger shared by the resolver,
// its providers and the CLI, and carries request-scoped loggers in contexts.
package logger

import (
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/rafaeljc/slipup/internal/config"
)

// redacted replaces the value of any attribute named in sensitiveKeys.
const redacted = "[REDACTED]"

// sensitiveKeys are attribute names whose values never reach the output.
var sensitiveKeys = []string{"access_key", "password", "authorization", "token"}

// New returns a logger for cfg writing to stderr, keeping stdout free for CLI output.
func New(cfg *config.AppConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter returns a logger for cfg writing to w.
// Every record carries the service name, version and environment.
func NewWithWriter(cfg *config.AppConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		panic("logger: config cannot be nil")
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
		// file:line is noisy and costly, production goes without it
		AddSource:   cfg.Environment != config.EnvironmentProduction,
		ReplaceAttr: redact,
	}

	return slog.New(newHandler(cfg.LogFormat, w, opts)).With(
		slog.String("service", cfg.Name),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Environment),
	)
}

// newHandler picks the text handler on request and JSON otherwise.
func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if slices.Contains(sensitiveKeys, a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps a case-insensitive level name to slog.Level, falling back to INFO.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

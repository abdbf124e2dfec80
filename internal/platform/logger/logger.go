package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the logging settings.
type Config struct {
	Level string
}

type contextKey struct{}

// ParseLevel parses a level name case-insensitively. The second return value
// reports whether the name was recognised; unknown names map to info.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup creates a JSON logger on stdout at the configured level and installs
// it as the slog default.
func Setup(cfg Config) (*slog.Logger, error) {
	return setup(cfg, os.Stdout)
}

func setup(cfg Config, out io.Writer) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.Level)

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if !ok {
		logger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}
	return logger, nil
}

// WithLogger returns a copy of ctx carrying l. It panics on a nil logger.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		panic("logger: WithLogger called with nil logger")
	}
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOrDefault(ctx, slog.Default())
}

// FromContextOrDefault returns the logger stored in ctx, or fallback.
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx == nil {
		return fallback
	}
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

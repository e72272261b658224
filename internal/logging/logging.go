// Package logging configures the process-wide zerolog logger and carries
// per-component loggers through context.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerContextKey struct{}

var loggerCtxKey = &loggerContextKey{}

// Setup initializes the root logger for the named service and returns a
// context carrying it. Level is parsed from the WHEREABOUTS_LOG_LEVEL
// environment variable, defaulting to info.
func Setup(ctx context.Context, serviceName string) (context.Context, zerolog.Logger) {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("WHEREABOUTS_LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	logger := zerolog.New(os.Stderr).Level(level).With().
		Timestamp().
		Str("service", strings.ToLower(serviceName)).
		Logger()
	log.Logger = logger

	return NewContext(ctx, logger), logger
}

// NewContext returns a context carrying the given logger.
func NewContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// FromContext retrieves the logger stored in ctx, falling back to the
// package-level logger when none is present.
func FromContext(ctx context.Context) zerolog.Logger {
	logger, ok := ctx.Value(loggerCtxKey).(zerolog.Logger)
	if !ok {
		return log.Logger
	}
	return logger
}

// Package bootlog carries a zerolog logger through contexts and provides the
// colored status lines the bootstrapper prints between phases.
package bootlog

import (
	"context"

	"github.com/mitchellh/colorstring"
	"github.com/muyo/sno"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type logPtr struct{}

// WithLogger attaches the given logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logPtr{}, logger)
}

// WithRunID derives a logger from the global instance, tags it with a fresh
// run ID and attaches it to the context.
func WithRunID(ctx context.Context) context.Context {
	logger := log.With().Str("run", sno.New(0).String()).Logger()
	return WithLogger(ctx, &logger)
}

// WithPhase derives a logger tagged with the given bootstrap phase and
// attaches it to the context. The console writer uses the tag as a line
// prefix.
func WithPhase(ctx context.Context, phase string) context.Context {
	logger := Log(ctx).With().Str("phase", phase).Logger()
	return WithLogger(ctx, &logger)
}

// Log returns the context's logger or falls back to the global instance
func Log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logPtr{})
	if logger == nil {
		return &log.Logger
	}

	return logger.(*zerolog.Logger)
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}

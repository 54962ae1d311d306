package pointgrid

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pointgrid-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithTable adds a table id field to the logger.
func (l *Logger) WithTable(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", id),
	}
}

// WithRadius adds a radius field to the logger.
func (l *Logger) WithRadius(radius float64) *Logger {
	return &Logger{
		Logger: l.Logger.With("radius", radius),
	}
}

// BuildEvent describes one table build for LogBuild.
type BuildEvent struct {
	Table    string
	Points   int
	Batches  int
	Buckets  int64
	Duration time.Duration
}

// LogBuild logs a table build.
func (l *Logger) LogBuild(ctx context.Context, ev BuildEvent, err error) {
	if err != nil {
		l.ErrorContext(ctx, "hash table build failed",
			"points", ev.Points,
			"batches", ev.Batches,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "hash table built",
		"table", ev.Table,
		"points", ev.Points,
		"batches", ev.Batches,
		"buckets", ev.Buckets,
		"duration", ev.Duration,
	)
}

// SearchEvent describes one search for LogSearch.
type SearchEvent struct {
	Table     string
	Queries   int
	Neighbors int64
	Metric    string
	Duration  time.Duration
}

// LogSearch logs a radius search.
func (l *Logger) LogSearch(ctx context.Context, ev SearchEvent, err error) {
	if err != nil {
		l.ErrorContext(ctx, "radius search failed",
			"queries", ev.Queries,
			"metric", ev.Metric,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "radius search completed",
		"table", ev.Table,
		"queries", ev.Queries,
		"neighbors", ev.Neighbors,
		"metric", ev.Metric,
		"duration", ev.Duration,
	)
}

// LogSnapshot logs a snapshot write or read.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot "+op,
		"name", name,
		"bytes", bytes,
	)
}

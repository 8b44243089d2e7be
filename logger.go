package gapgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with fit-pipeline context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithComponent adds a component field to the logger (useful for tagging
// pipeline stages).
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogSparsify logs a sparse point selection.
func (l *Logger) LogSparsify(ctx context.Context, nSelect int, coveringRadius float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sparse point selection failed",
			"n_select", nSelect,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "sparse points selected",
			"n_select", nSelect,
			"covering_radius", coveringRadius,
		)
	}
}

// LogKernels logs a kernel matrix assembly.
func (l *Logger) LogKernels(ctx context.Context, energyRows, forceRows, nSparse int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "kernel assembly failed",
			"n_sparse", nSparse,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "kernel matrices assembled",
			"energy_rows", energyRows,
			"force_rows", forceRows,
			"n_sparse", nSparse,
		)
	}
}

// LogFit logs the regression solve.
func (l *Logger) LogFit(ctx context.Context, nStructures, nSparse int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"structures", nStructures,
			"n_sparse", nSparse,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fit completed",
			"structures", nStructures,
			"n_sparse", nSparse,
		)
	}
}

// LogPredict logs a prediction pass.
func (l *Logger) LogPredict(ctx context.Context, nStructures int, withForces bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "prediction failed",
			"structures", nStructures,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "prediction completed",
			"structures", nStructures,
			"forces", withForces,
		)
	}
}

// LogSave logs a model save.
func (l *Logger) LogSave(ctx context.Context, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "model save failed",
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "model saved",
			"filename", filename,
		)
	}
}

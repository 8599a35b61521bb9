package chunkcanvas

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPath adds the index path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogCreate logs an index creation.
func (l *Logger) LogCreate(ctx context.Context, path string, dimension int, metric string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create failed",
			"path", path,
			"dimension", dimension,
			"metric", metric,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index created",
			"path", path,
			"dimension", dimension,
			"metric", metric,
		)
	}
}

// LogUpsert logs an upsert batch.
func (l *Logger) LogUpsert(ctx context.Context, path string, count, total int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "upsert failed",
			"path", path,
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "upsert completed",
			"path", path,
			"count", count,
			"total", total,
		)
	}
}

// LogDelete logs a delete batch.
func (l *Logger) LogDelete(ctx context.Context, path string, requested, deleted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"path", path,
			"requested", requested,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "delete completed",
			"path", path,
			"requested", requested,
			"deleted", deleted,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, path string, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"path", path,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"path", path,
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogCommit logs a failed pair commit. Successful commits are covered by
// the operation logs.
func (l *Logger) LogCommit(ctx context.Context, path, stage string, err error) {
	l.ErrorContext(ctx, "commit failed",
		"path", path,
		"stage", stage,
		"error", err,
	)
}

// LogRecovery logs how a leftover pending sidecar was resolved.
func (l *Logger) LogRecovery(ctx context.Context, path, action string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pending commit recovery failed",
			"path", path,
			"action", action,
			"error", err,
		)
	} else {
		l.WarnContext(ctx, "pending commit recovered",
			"path", path,
			"action", action,
		)
	}
}

// LogPreviewMiss logs records whose vector could not be reconstructed.
func (l *Logger) LogPreviewMiss(ctx context.Context, path string, missing int) {
	l.DebugContext(ctx, "records without reconstructable vector",
		"path", path,
		"missing", missing,
	)
}

// LogMirror logs a mirror upload.
func (l *Logger) LogMirror(ctx context.Context, name string, version uint64, err error) {
	if err != nil {
		l.WarnContext(ctx, "mirror upload failed",
			"index", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "mirror upload completed",
			"index", name,
			"version", version,
		)
	}
}

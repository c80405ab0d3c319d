package tindex

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific helpers.
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
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithIndex adds an index field to the logger.
func (l *Logger) WithIndex(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", id),
	}
}

// LogInsert logs an insert.
func (l *Logger) LogInsert(ctx context.Context, indexID, keyspace, entity string, from int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"index", indexID,
			"keyspace", keyspace,
			"entity", entity,
			"valid_from", from,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "insert completed",
		"index", indexID,
		"keyspace", keyspace,
		"entity", entity,
		"valid_from", from,
	)
}

// LogTerminate logs a validity termination.
func (l *Logger) LogTerminate(ctx context.Context, indexID, keyspace, entity string, instant int64, changed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "terminate failed",
			"index", indexID,
			"keyspace", keyspace,
			"entity", entity,
			"instant", instant,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "terminate completed",
		"index", indexID,
		"keyspace", keyspace,
		"entity", entity,
		"instant", instant,
		"changed", changed,
	)
}

// LogRollback logs a rollback.
func (l *Logger) LogRollback(ctx context.Context, indexID string, instant int64, stats RollbackStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rollback failed",
			"index", indexID,
			"instant", instant,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "rollback completed",
		"index", indexID,
		"instant", instant,
		"scanned", stats.Scanned,
		"rewritten", stats.Rewritten,
		"deleted", stats.Deleted,
	)
}

// LogScan logs a scan.
func (l *Logger) LogScan(ctx context.Context, spec string, keyspace string, instant int64, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed",
			"spec", spec,
			"keyspace", keyspace,
			"instant", instant,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "scan completed",
		"spec", spec,
		"keyspace", keyspace,
		"instant", instant,
		"results", results,
	)
}

// LogCatalog logs an index definition change.
func (l *Logger) LogCatalog(ctx context.Context, action string, def IndexDefinition, err error) {
	if err != nil {
		l.ErrorContext(ctx, "catalog change failed",
			"action", action,
			"index", def.ID,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "catalog changed",
		"action", action,
		"index", def.ID,
		"property", def.Property,
		"kind", def.Kind.String(),
	)
}

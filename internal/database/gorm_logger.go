package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSlowQuery is the duration above which a statement is reported as slow.
const DefaultSlowQuery = 2 * time.Second

// maxSQLLength caps the statement text carried in a log record.
const maxSQLLength = 200

// QueryLogger reports GORM statements through slog. Records are emitted with
// the statement's context, so handlers that read correlation ids from the
// context tag each query with the run that issued it.
type QueryLogger struct {
	logger *slog.Logger
	slow   time.Duration
}

// NewQueryLogger creates a QueryLogger. A nil logger uses slog.Default at
// log time; a non-positive slow threshold disables slow-query warnings.
func NewQueryLogger(l *slog.Logger, slow time.Duration) QueryLogger {
	return QueryLogger{logger: l, slow: slow}
}

func (l QueryLogger) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// LogMode is a no-op; the slog level decides what is kept.
func (l QueryLogger) LogMode(logger.LogLevel) logger.Interface { return l }

// Info implements logger.Interface.
func (l QueryLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log().InfoContext(ctx, fmt.Sprintf(msg, args...))
}

// Warn implements logger.Interface.
func (l QueryLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log().WarnContext(ctx, fmt.Sprintf(msg, args...))
}

// Error implements logger.Interface.
func (l QueryLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log().ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

// Trace is called after every statement. Failed statements are warnings:
// against a catalog they are mostly previews of caller-supplied SQL.
func (l QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	log := l.log()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		log.WarnContext(ctx, "catalog query failed", queryAttrs(sql, rows, elapsed, slog.Any("error", err))...)
	case l.slow > 0 && elapsed > l.slow:
		sql, rows := fc()
		log.WarnContext(ctx, "slow catalog query", queryAttrs(sql, rows, elapsed, slog.Duration("threshold", l.slow))...)
	case log.Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		log.DebugContext(ctx, "catalog query", queryAttrs(sql, rows, elapsed)...)
	}
}

func queryAttrs(sql string, rows int64, elapsed time.Duration, extra ...any) []any {
	attrs := []any{
		slog.String("kind", StatementKind(sql)),
		slog.String("sql", truncateSQL(sql)),
		slog.Int64("rows", rows),
		slog.Duration("duration", elapsed),
	}
	return append(attrs, extra...)
}

// StatementKind classifies a statement for logs: introspection, sample,
// preview, transaction, or query.
func StatementKind(sql string) string {
	s := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.Contains(s, "INFORMATION_SCHEMA.") || strings.Contains(s, "SQLITE_MASTER"):
		return "introspection"
	case strings.HasPrefix(s, "SELECT DISTINCT"):
		return "sample"
	case strings.HasSuffix(s, "AS PREVIEW LIMIT ?") || strings.Contains(s, ") AS PREVIEW LIMIT"):
		return "preview"
	case strings.HasPrefix(s, "SET TRANSACTION"):
		return "transaction"
	default:
		return "query"
	}
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

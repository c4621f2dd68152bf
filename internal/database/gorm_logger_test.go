package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type runKey struct{}

// runHandler copies the run id stored in the context onto each record.
type runHandler struct{ slog.Handler }

func (h runHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(runKey{}).(string); ok {
		r.AddAttrs(slog.String("run", id))
	}
	return h.Handler.Handle(ctx, r)
}

func capture(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})
	return slog.New(runHandler{h}), &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestQueryLogger_TagsStatementsWithContext(t *testing.T) {
	logger, buf := capture(slog.LevelDebug)
	db, err := NewDatabaseWithConfig(context.Background(),
		SQLiteURL(filepath.Join(t.TempDir(), "catalog.db")),
		&gorm.Config{Logger: NewQueryLogger(logger, 0)},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.WithValue(context.Background(), runKey{}, "run-7")
	var n int
	require.NoError(t, db.Session(ctx).Raw("SELECT * FROM (SELECT 1 AS n) AS preview LIMIT ?", 5).Scan(&n).Error)

	recs := records(t, buf)
	require.NotEmpty(t, recs)
	last := recs[len(recs)-1]
	assert.Equal(t, "catalog query", last["msg"])
	assert.Equal(t, "preview", last["kind"])
	assert.Equal(t, "run-7", last["run"])
}

func TestQueryLogger_FailuresAndSlowQueries(t *testing.T) {
	logger, buf := capture(slog.LevelWarn)
	ql := NewQueryLogger(logger, 100*time.Millisecond)
	fc := func() (string, int64) { return "SELECT DISTINCT \"symbol\" FROM \"trades\"", 0 }
	ctx := context.WithValue(context.Background(), runKey{}, "run-8")

	ql.Trace(ctx, time.Now(), fc, errors.New("no such table: trades"))
	ql.Trace(ctx, time.Now().Add(-time.Second), fc, nil)
	ql.Trace(ctx, time.Now(), fc, nil)
	ql.Trace(ctx, time.Now(), fc, gorm.ErrRecordNotFound)

	recs := records(t, buf)
	require.Len(t, recs, 2, "fast and not-found statements stay below warn")
	assert.Equal(t, "catalog query failed", recs[0]["msg"])
	assert.Equal(t, "sample", recs[0]["kind"])
	assert.Equal(t, "no such table: trades", recs[0]["error"])
	assert.Equal(t, "slow catalog query", recs[1]["msg"])
	assert.Equal(t, "run-8", recs[1]["run"])
}

func TestStatementKind(t *testing.T) {
	tests := map[string]string{
		"SELECT table_name FROM information_schema.columns WHERE table_schema = ?": "introspection",
		"SELECT m.name FROM sqlite_master m":                                       "introspection",
		`SELECT DISTINCT CAST("symbol" AS TEXT) AS value FROM "trades"`:            "sample",
		"SELECT * FROM (SELECT 1) AS preview LIMIT ?":                              "preview",
		"SET TRANSACTION READ ONLY":                                                "transaction",
		"INSERT INTO value_records VALUES (?)":                                     "query",
	}
	for sql, want := range tests {
		assert.Equal(t, want, StatementKind(sql), sql)
	}
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := strings.Repeat("x", 500)
	got := truncateSQL(long)
	assert.LessOrEqual(t, len(got), maxSQLLength)
	assert.Contains(t, got, "...")
}

// Package catalog reads table and column metadata and sampled column values
// from the target database, or from a JSON snapshot of it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/internal/database"
)

// ErrUnknownColumn indicates a sampling request for a column not in the catalog.
var ErrUnknownColumn = errors.New("unknown column")

var typeLength = regexp.MustCompile(`\s*\(.*\)\s*$`)

// Live introspects a running database.
type Live struct {
	db        database.Database
	namespace string
}

// NewLive creates a Live catalog over db. Namespace selects the PostgreSQL
// schema and is ignored for SQLite.
func NewLive(db database.Database, namespace string) *Live {
	if namespace == "" {
		namespace = schema.DefaultNamespace
	}
	return &Live{db: db, namespace: namespace}
}

// Namespace returns the introspected schema name.
func (l *Live) Namespace() string { return l.namespace }

type columnRow struct {
	TableName  string
	ColumnName string
	DataType   string
}

const postgresColumnsQuery = `SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`

const sqliteColumnsQuery = `SELECT m.name AS table_name, p.name AS column_name, p.type AS data_type
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`

// Columns lists every column of every table in catalog order.
func (l *Live) Columns(ctx context.Context) ([]schema.Column, error) {
	var rows []columnRow
	var err error
	if l.db.IsPostgres() {
		err = l.db.Session(ctx).Raw(postgresColumnsQuery, l.namespace).Scan(&rows).Error
	} else {
		err = l.db.Session(ctx).Raw(sqliteColumnsQuery).Scan(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	columns := make([]schema.Column, 0, len(rows))
	for _, r := range rows {
		columns = append(columns, schema.NewColumn(r.TableName, r.ColumnName, normalizeType(r.DataType)))
	}
	return columns, nil
}

// normalizeType lowercases a declared type and drops any length or
// precision suffix, so SQLite's VARCHAR(100) reads as varchar.
func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(typeLength.ReplaceAllString(t, "")))
}

// DistinctValues samples up to limit distinct non-null values of a column,
// rendered as text.
func (l *Live) DistinctValues(ctx context.Context, ref schema.ColumnRef, limit int) ([]string, error) {
	if ref.Table == "" || ref.Column == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, ref)
	}
	col := quoteIdent(ref.Column)
	q := fmt.Sprintf(
		"SELECT DISTINCT CAST(%s AS TEXT) AS value FROM %s WHERE %s IS NOT NULL LIMIT ?",
		col, l.qualified(ref.Table), col,
	)

	var values []string
	if err := l.db.Session(ctx).Raw(q, limit).Scan(&values).Error; err != nil {
		return nil, fmt.Errorf("sample %s: %w", ref, err)
	}
	return values, nil
}

func (l *Live) qualified(table string) string {
	if l.db.IsPostgres() {
		return quoteIdent(l.namespace) + "." + quoteIdent(table)
	}
	return quoteIdent(table)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Query runs a statement inside a read-only transaction that is always
// rolled back, returning at most limit rows. Callers must validate the
// statement first.
func (l *Live) Query(ctx context.Context, sql string, limit int) (query.ResultSet, error) {
	wrapped, fetch := query.PreviewStatement(sql, limit)
	return database.WithReadOnly(ctx, l.db, func(tx *gorm.DB) (query.ResultSet, error) {
		rows, err := tx.Raw(wrapped, fetch).Rows()
		if err != nil {
			return query.ResultSet{}, fmt.Errorf("run preview: %w", err)
		}
		defer func() { _ = rows.Close() }()

		columns, err := rows.Columns()
		if err != nil {
			return query.ResultSet{}, fmt.Errorf("read columns: %w", err)
		}

		result := query.ResultSet{Columns: columns, Rows: [][]string{}}
		for rows.Next() {
			if len(result.Rows) == fetch-1 {
				result.Truncated = true
				break
			}
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return query.ResultSet{}, fmt.Errorf("scan row: %w", err)
			}
			result.Rows = append(result.Rows, renderRow(values))
		}
		if err := rows.Err(); err != nil {
			return query.ResultSet{}, fmt.Errorf("read rows: %w", err)
		}
		return result, nil
	})
}

func renderRow(values []any) []string {
	row := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case nil:
			row[i] = ""
		case []byte:
			row[i] = string(t)
		case string:
			row[i] = t
		case time.Time:
			row[i] = t.Format(time.RFC3339)
		default:
			row[i] = fmt.Sprint(t)
		}
	}
	return row
}

var _ schema.Source = (*Live)(nil)

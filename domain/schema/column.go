// Package schema models the relational catalog the pipeline grounds its SQL on.
package schema

import (
	"sort"
	"strings"
)

// DefaultNamespace is the catalog namespace introspected when none is configured.
const DefaultNamespace = "public"

// MaxColumnsPerTable caps the columns listed per table in a compact summary.
const MaxColumnsPerTable = 20

// textLikeTypes are the declared types eligible for value sampling.
var textLikeTypes = map[string]struct{}{
	"text":              {},
	"varchar":           {},
	"character varying": {},
	"char":              {},
}

// Column is one catalog column. Snapshots are ordered by table, then ordinal
// position.
type Column struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Type   string `json:"type"`
}

// NewColumn creates a Column.
func NewColumn(table, column, dataType string) Column {
	return Column{Table: table, Column: column, Type: dataType}
}

// Ref returns the (table, column) identity of the column.
func (c Column) Ref() ColumnRef {
	return ColumnRef{Table: c.Table, Column: c.Column}
}

// IsTextLike reports whether the declared type is textual.
func (c Column) IsTextLike() bool {
	return IsTextLikeType(c.Type)
}

// IsTextLikeType reports whether a declared type name is textual (case-insensitive).
func IsTextLikeType(dataType string) bool {
	_, ok := textLikeTypes[strings.ToLower(strings.TrimSpace(dataType))]
	return ok
}

// ColumnRef identifies a column by table and column name.
type ColumnRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// NewColumnRef creates a ColumnRef.
func NewColumnRef(table, column string) ColumnRef {
	return ColumnRef{Table: table, Column: column}
}

// String renders the reference as table.column.
func (r ColumnRef) String() string {
	return r.Table + "." + r.Column
}

// TextLikeColumns filters columns to the text-like ones, preserving order.
func TextLikeColumns(columns []Column) []ColumnRef {
	refs := make([]ColumnRef, 0, len(columns))
	for _, c := range columns {
		if c.IsTextLike() {
			refs = append(refs, c.Ref())
		}
	}
	return refs
}

// TablesForColumns returns the distinct tables referenced, sorted.
func TablesForColumns(refs []ColumnRef) []string {
	seen := make(map[string]struct{}, len(refs))
	tables := make([]string, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.Table]; ok {
			continue
		}
		seen[r.Table] = struct{}{}
		tables = append(tables, r.Table)
	}
	sort.Strings(tables)
	return tables
}

// Tables returns the distinct table names of a snapshot, sorted.
func Tables(columns []Column) []string {
	refs := make([]ColumnRef, len(columns))
	for i, c := range columns {
		refs[i] = c.Ref()
	}
	return TablesForColumns(refs)
}

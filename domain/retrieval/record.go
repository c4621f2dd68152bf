// Package retrieval ranks value-similarity hits into the compact context that
// grounds SQL generation.
package retrieval

import (
	"strings"

	"github.com/helixml/ticketsql/domain/schema"
)

// ValueRecord is one sampled distinct value of a text-like column.
type ValueRecord struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

// NewValueRecord creates a ValueRecord.
func NewValueRecord(table, column, value string) ValueRecord {
	return ValueRecord{Table: table, Column: column, Value: value}
}

// Ref returns the column the value was sampled from.
func (r ValueRecord) Ref() schema.ColumnRef {
	return schema.NewColumnRef(r.Table, r.Column)
}

// Text is the string embedded for similarity search.
func (r ValueRecord) Text() string { return r.Value }

// Valid reports whether the record names a table, a column and a non-blank value.
func (r ValueRecord) Valid() bool {
	return r.Table != "" && r.Column != "" && strings.TrimSpace(r.Value) != ""
}

// Hit is a nearest-neighbour match. Score is a distance: lower is closer.
type Hit struct {
	ValueRecord
	Score float64 `json:"score"`
}

// NewHit creates a Hit.
func NewHit(record ValueRecord, score float64) Hit {
	return Hit{ValueRecord: record, Score: score}
}

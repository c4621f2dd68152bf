// Package query holds generated SQL statements and the read-only safety gate
// every statement passes before it is returned or executed.
package query

// Candidate is a first-draft statement produced by generation.
type Candidate struct {
	SQL string `json:"sql" description:"A single read-only PostgreSQL SELECT or WITH statement"`
}

// Reviewed is a statement produced by review or feedback revision,
// together with the model's explanation of what changed.
type Reviewed struct {
	SQL   string `json:"sql" description:"A single read-only PostgreSQL SELECT or WITH statement"`
	Notes string `json:"notes" description:"Short explanation of the changes made"`
}

// NewReviewed creates a Reviewed statement.
func NewReviewed(sql, notes string) Reviewed {
	return Reviewed{SQL: sql, Notes: notes}
}

// IsEmpty reports whether the candidate carries no statement text.
func (c Candidate) IsEmpty() bool { return isBlank(c.SQL) }

// IsEmpty reports whether the reviewed statement carries no statement text.
func (r Reviewed) IsEmpty() bool { return isBlank(r.SQL) }

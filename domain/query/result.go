package query

// DefaultPreviewLimit caps preview rows when no limit is configured.
const DefaultPreviewLimit = 50

// ResultSet is the bounded outcome of running a statement read-only. Values
// are rendered as text; NULL renders as an empty string.
type ResultSet struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// Len returns the number of rows.
func (r ResultSet) Len() int { return len(r.Rows) }

// PreviewStatement wraps sql so at most limit+1 rows come back; the extra
// row only signals truncation.
func PreviewStatement(sql string, limit int) (string, int) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	return "SELECT * FROM (" + trimTerminator(sql) + ") AS preview LIMIT ?", limit + 1
}

func trimTerminator(sql string) string {
	s := sql
	for len(s) > 0 {
		c := s[len(s)-1]
		if c == ';' || c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			s = s[:len(s)-1]
			continue
		}
		break
	}
	return s
}

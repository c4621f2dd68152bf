package query

import "strings"

// SplitStatements splits sql on top-level semicolons. Semicolons inside single
// quoted literals, double quoted identifiers, dollar quoted bodies, line
// comments and block comments do not split. Empty statements are dropped.
func SplitStatements(sql string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(sql, i, c)
			current.WriteString(sql[i:end])
			i = end - 1
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				i = len(sql)
				continue
			}
			i += end
			current.WriteByte('\n')
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
				continue
			}
			i += end + 3
			current.WriteByte(' ')
		case c == '$':
			tag, ok := dollarTag(sql[i:])
			if !ok {
				current.WriteByte(c)
				continue
			}
			rest := sql[i+len(tag):]
			end := strings.Index(rest, tag)
			if end < 0 {
				current.WriteString(sql[i:])
				i = len(sql)
				continue
			}
			n := len(tag) + end + len(tag)
			current.WriteString(sql[i : i+n])
			i += n - 1
		case c == ';':
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return statements
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled quote character is an escaped quote.
func skipQuoted(sql string, start int, quote byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != quote {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(sql)
}

// dollarTag returns a $tag$ opener at the start of s.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 1 && c >= '0' && c <= '9') {
			return "", false
		}
	}
	return "", false
}

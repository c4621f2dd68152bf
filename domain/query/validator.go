package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsafeSQL indicates a statement failed the read-only safety gate.
var ErrUnsafeSQL = errors.New("invalid or unsafe sql")

// ForbiddenKeywords are rejected anywhere in the uppercased statement text.
var ForbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "EXEC", "GRANT",
}

var readOnlyPrefix = regexp.MustCompile(`(?i)^\s*(WITH\b|SELECT\b)`)

// Validate reports whether sql passes the lexical read-only gate: the trimmed
// statement starts with WITH or SELECT and its uppercased text contains none of
// the forbidden keywords as a substring.
//
// Substring matching is deliberately coarse. A literal such as 'DROP' or an
// identifier such as created_at is rejected.
func Validate(sql string) bool {
	return Check(sql) == nil
}

// Check is Validate returning the failing rule as an error wrapping ErrUnsafeSQL.
func Check(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if !readOnlyPrefix.MatchString(trimmed) {
		return fmt.Errorf("%w: statement must start with SELECT or WITH", ErrUnsafeSQL)
	}
	upper := strings.ToUpper(trimmed)
	for _, kw := range ForbiddenKeywords {
		if strings.Contains(upper, kw) {
			return fmt.Errorf("%w: contains forbidden keyword %s", ErrUnsafeSQL, kw)
		}
	}
	return nil
}

// Validator is the configured safety gate. The zero value applies the lexical
// rules only.
type Validator struct {
	strict bool
}

// NewValidator creates a Validator. In strict mode a statement must also be a
// single top-level statement once literals and comments are skipped.
func NewValidator(strict bool) Validator {
	return Validator{strict: strict}
}

// Strict reports whether the single-statement rule is enforced.
func (v Validator) Strict() bool { return v.strict }

// Validate reports whether sql passes the gate.
func (v Validator) Validate(sql string) bool {
	return v.Check(sql) == nil
}

// Check returns nil when sql passes the gate, or an error wrapping ErrUnsafeSQL.
func (v Validator) Check(sql string) error {
	if err := Check(sql); err != nil {
		return err
	}
	if !v.strict {
		return nil
	}
	if n := len(SplitStatements(sql)); n != 1 {
		return fmt.Errorf("%w: expected exactly one statement, found %d", ErrUnsafeSQL, n)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

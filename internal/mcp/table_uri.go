package mcp

import (
	"errors"
	"fmt"
	"strings"
)

// TableURIScheme prefixes table resource URIs.
const TableURIScheme = "schema://"

// TableURITemplate is the resource template clients fill in to read a table.
const TableURITemplate = TableURIScheme + "{namespace}/{table}"

var errInvalidTableURI = errors.New("invalid table uri")

// TableURI addresses one catalog table as an MCP resource.
// Immutable value object.
type TableURI struct {
	namespace string
	table     string
}

// NewTableURI creates a TableURI.
func NewTableURI(namespace, table string) TableURI {
	return TableURI{namespace: namespace, table: table}
}

// ParseTableURI reads a schema://namespace/table URI.
func ParseTableURI(raw string) (TableURI, error) {
	rest, ok := strings.CutPrefix(raw, TableURIScheme)
	if !ok {
		return TableURI{}, fmt.Errorf("%w: %q", errInvalidTableURI, raw)
	}
	namespace, table, ok := strings.Cut(rest, "/")
	if !ok || namespace == "" || table == "" || strings.Contains(table, "/") {
		return TableURI{}, fmt.Errorf("%w: %q", errInvalidTableURI, raw)
	}
	return TableURI{namespace: namespace, table: table}, nil
}

// Namespace returns the schema name.
func (u TableURI) Namespace() string { return u.namespace }

// Table returns the table name.
func (u TableURI) Table() string { return u.table }

// String builds the schema:// URI string.
func (u TableURI) String() string {
	return TableURIScheme + u.namespace + "/" + u.table
}

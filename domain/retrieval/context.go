package retrieval

import (
	"fmt"
	"strings"
)

// Section headings of a rendered compact context.
const (
	SchemaHeading = "Database tables & columns (compact):"
	ValuesHeading = "Sample of data values in tables and columns:"
	ValuesPreface = "Relevant columns (illustrative values only; do NOT filter on them unless the ticket explicitly asks):"
)

// CompactContext is the bounded schema and value bundle handed to the model.
type CompactContext struct {
	schema string
	values []string
}

// NewCompactContext builds a CompactContext from a rendered schema summary
// and the ranked columns. Each column shows up to DefaultDisplayedExamples
// values followed by an elision count.
func NewCompactContext(schemaSummary string, ranked RankedColumns) CompactContext {
	values := make([]string, 0, len(ranked))
	for _, c := range ranked {
		shown := c.Examples[:min(len(c.Examples), DefaultDisplayedExamples)]
		line := fmt.Sprintf("- %s: e.g. %s", c.Ref.String(), strings.Join(shown, ", "))
		if extra := len(c.Examples) - len(shown); extra > 0 {
			line += fmt.Sprintf(" (+%d more)", extra)
		}
		values = append(values, line)
	}
	return CompactContext{schema: schemaSummary, values: values}
}

// Schema returns the rendered schema summary.
func (c CompactContext) Schema() string { return c.schema }

// ValueLines returns one rendered line per ranked column.
func (c CompactContext) ValueLines() []string {
	lines := make([]string, len(c.values))
	copy(lines, c.values)
	return lines
}

// IsEmpty reports whether the context carries neither schema nor values.
func (c CompactContext) IsEmpty() bool {
	return strings.TrimSpace(c.schema) == "" && len(c.values) == 0
}

// String renders the context. An empty context renders "".
func (c CompactContext) String() string {
	if c.IsEmpty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(SchemaHeading)
	b.WriteString("\n")
	b.WriteString(c.schema)
	b.WriteString("\n\n")
	b.WriteString(ValuesHeading)
	b.WriteString("\n")
	b.WriteString(ValuesPreface)
	for _, line := range c.values {
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}

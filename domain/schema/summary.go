package schema

import (
	"fmt"
	"sort"
	"strings"
)

// CompactSummary renders the columns of the given tables, one line per table:
//
//	- table: col1 (type1), col2 (type2), … (+N more)
//
// Tables are sorted. At most MaxColumnsPerTable columns are listed per table.
// Tables absent from columns are skipped, so an empty snapshot renders "".
func CompactSummary(columns []Column, tables []string) string {
	wanted := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		wanted[t] = struct{}{}
	}

	byTable := make(map[string][]string)
	for _, c := range columns {
		if _, ok := wanted[c.Table]; !ok {
			continue
		}
		byTable[c.Table] = append(byTable[c.Table], fmt.Sprintf("%s (%s)", c.Column, c.Type))
	}

	names := make([]string, 0, len(byTable))
	for t := range byTable {
		names = append(names, t)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, t := range names {
		cols := byTable[t]
		rendered := strings.Join(cols[:min(len(cols), MaxColumnsPerTable)], ", ")
		if extra := len(cols) - MaxColumnsPerTable; extra > 0 {
			rendered += fmt.Sprintf(", … (+%d more)", extra)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", t, rendered))
	}
	return strings.Join(lines, "\n")
}

// FullSummary renders every table of the snapshot.
func FullSummary(columns []Column) string {
	return CompactSummary(columns, Tables(columns))
}

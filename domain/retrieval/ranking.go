package retrieval

import (
	"sort"

	"github.com/helixml/ticketsql/domain/schema"
)

// Default retrieval bounds.
const (
	DefaultKValues           = 30
	DefaultMaxColumns        = 10
	DefaultMaxExamples       = 10
	DefaultDisplayedExamples = 5
)

// Options bounds a retrieval.
type Options struct {
	KValues     int
	MaxColumns  int
	MaxExamples int
}

// DefaultOptions returns k=30, ten columns and ten examples per column.
func DefaultOptions() Options {
	return Options{
		KValues:     DefaultKValues,
		MaxColumns:  DefaultMaxColumns,
		MaxExamples: DefaultMaxExamples,
	}
}

// ColumnExamples is one ranked column with its example values, best first.
type ColumnExamples struct {
	Ref       schema.ColumnRef `json:"column"`
	BestScore float64          `json:"best_score"`
	Examples  []string         `json:"examples"`
}

// RankedColumns is the ranked (table, column) to examples mapping. Order is by
// ascending best score; equal best scores are ordered by table.column.
type RankedColumns []ColumnExamples

// Refs returns the ranked column references in rank order.
func (r RankedColumns) Refs() []schema.ColumnRef {
	refs := make([]schema.ColumnRef, len(r))
	for i, c := range r {
		refs[i] = c.Ref
	}
	return refs
}

// Tables returns the sorted set of tables implicated by the ranking.
func (r RankedColumns) Tables() []string {
	return schema.TablesForColumns(r.Refs())
}

// Examples returns the examples of a column, or nil when it was not ranked.
func (r RankedColumns) Examples(ref schema.ColumnRef) []string {
	for _, c := range r {
		if c.Ref == ref {
			return c.Examples
		}
	}
	return nil
}

// Rank groups hits by column, orders each group's values by ascending score,
// de-duplicates them keeping the best-scored occurrence, caps each group at
// maxExamples and keeps the maxColumns groups with the lowest best score.
// Hits missing a table, column or value are ignored. Within a group, values
// with equal scores keep their hit order.
func Rank(hits []Hit, maxColumns, maxExamples int) RankedColumns {
	if maxColumns <= 0 || maxExamples <= 0 {
		return RankedColumns{}
	}

	var order []schema.ColumnRef
	groups := make(map[schema.ColumnRef][]Hit)
	for _, h := range hits {
		if !h.Valid() {
			continue
		}
		ref := h.Ref()
		if _, ok := groups[ref]; !ok {
			order = append(order, ref)
		}
		groups[ref] = append(groups[ref], h)
	}

	ranked := make(RankedColumns, 0, len(order))
	for _, ref := range order {
		group := groups[ref]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score < group[j].Score
		})

		examples := make([]string, 0, min(len(group), maxExamples))
		seen := make(map[string]struct{}, len(group))
		for _, h := range group {
			if _, dup := seen[h.Value]; dup {
				continue
			}
			seen[h.Value] = struct{}{}
			examples = append(examples, h.Value)
			if len(examples) >= maxExamples {
				break
			}
		}

		ranked = append(ranked, ColumnExamples{
			Ref:       ref,
			BestScore: group[0].Score,
			Examples:  examples,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].BestScore != ranked[j].BestScore {
			return ranked[i].BestScore < ranked[j].BestScore
		}
		return ranked[i].Ref.String() < ranked[j].Ref.String()
	})

	if len(ranked) > maxColumns {
		ranked = ranked[:maxColumns]
	}
	return ranked
}

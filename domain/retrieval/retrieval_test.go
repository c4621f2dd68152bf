package retrieval

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(table, column, value string, score float64) Hit {
	return NewHit(NewValueRecord(table, column, value), score)
}

func TestRank_GroupsSortsAndDeduplicates(t *testing.T) {
	hits := []Hit{
		hit("trades", "symbol", "ETH", 0.40),
		hit("trades", "symbol", "BTC", 0.10),
		hit("venues", "name", "Binance", 0.30),
		hit("trades", "symbol", "BTC", 0.20),
		hit("trades", "symbol", "XRP", 0.40),
	}

	got := Rank(hits, 10, 10)

	want := RankedColumns{
		{Ref: schema.NewColumnRef("trades", "symbol"), BestScore: 0.10, Examples: []string{"BTC", "ETH", "XRP"}},
		{Ref: schema.NewColumnRef("venues", "name"), BestScore: 0.30, Examples: []string{"Binance"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
	}
}

func TestRank_DeduplicatesAndCapsExamples(t *testing.T) {
	var hits []Hit
	for i := range 40 {
		hits = append(hits, hit("t", "c", fmt.Sprintf("v%d", i%15), float64(i)))
	}

	got := Rank(hits, 10, 10)
	require.Len(t, got, 1)

	examples := got[0].Examples
	assert.Len(t, examples, 10)
	seen := map[string]bool{}
	for _, v := range examples {
		assert.False(t, seen[v], "duplicate %s", v)
		seen[v] = true
	}
	assert.Equal(t, "v0", examples[0])
}

func TestRank_KeepsTopColumnsByBestScore(t *testing.T) {
	var hits []Hit
	for i := range 15 {
		hits = append(hits, hit("t", fmt.Sprintf("c%02d", i), "x", float64(15-i)))
	}

	got := Rank(hits, 10, 10)

	require.Len(t, got, 10)
	assert.Equal(t, "c14", got[0].Ref.Column)
	assert.Equal(t, "c05", got[9].Ref.Column)
}

func TestRank_TiesOrderedByTableColumn(t *testing.T) {
	hits := []Hit{
		hit("zeta", "a", "x", 0.5),
		hit("alpha", "b", "y", 0.5),
		hit("alpha", "a", "z", 0.5),
	}

	got := Rank(hits, 2, 10)

	assert.Equal(t, []schema.ColumnRef{
		schema.NewColumnRef("alpha", "a"),
		schema.NewColumnRef("alpha", "b"),
	}, got.Refs())
}

func TestRank_EqualScoresWithinGroupKeepHitOrder(t *testing.T) {
	got := Rank([]Hit{hit("t", "c", "b", 0.3), hit("t", "c", "a", 0.3)}, 1, 10)
	assert.Equal(t, []string{"b", "a"}, got[0].Examples)
}

func TestRank_IgnoresIncompleteHits(t *testing.T) {
	got := Rank([]Hit{
		hit("", "c", "v", 0.1),
		hit("t", "", "v", 0.1),
		hit("t", "c", "  ", 0.1),
	}, 10, 10)
	assert.Empty(t, got)
}

func TestRank_EmptyInputs(t *testing.T) {
	assert.Empty(t, Rank(nil, 10, 10))
	assert.Empty(t, Rank([]Hit{hit("t", "c", "v", 0)}, 0, 10))
	assert.Empty(t, Rank([]Hit{hit("t", "c", "v", 0)}, 10, 0))
}

func TestRankedColumns_Accessors(t *testing.T) {
	ranked := Rank([]Hit{
		hit("trades", "symbol", "BTC", 0.1),
		hit("accounts", "name", "Ann", 0.2),
		hit("trades", "venue", "X", 0.3),
	}, 10, 10)

	assert.Equal(t, []string{"accounts", "trades"}, ranked.Tables())
	assert.Equal(t, []string{"BTC"}, ranked.Examples(schema.NewColumnRef("trades", "symbol")))
	assert.Nil(t, ranked.Examples(schema.NewColumnRef("trades", "qty")))
}

func TestCompactContext_Render(t *testing.T) {
	ranked := RankedColumns{
		{Ref: schema.NewColumnRef("trades", "symbol"), Examples: []string{"BTC", "ETH", "SOL", "XRP", "ADA", "DOT", "LTC"}},
		{Ref: schema.NewColumnRef("venues", "name"), Examples: []string{"Binance"}},
	}
	ctx := NewCompactContext("- trades: symbol (text)", ranked)

	want := strings.Join([]string{
		SchemaHeading,
		"- trades: symbol (text)",
		"",
		ValuesHeading,
		ValuesPreface,
		"- trades.symbol: e.g. BTC, ETH, SOL, XRP, ADA (+2 more)",
		"- venues.name: e.g. Binance",
	}, "\n")
	assert.Equal(t, want, ctx.String())
	assert.Len(t, ctx.ValueLines(), 2)
	assert.Equal(t, "- trades: symbol (text)", ctx.Schema())
}

func TestCompactContext_Empty(t *testing.T) {
	ctx := NewCompactContext("", nil)
	assert.True(t, ctx.IsEmpty())
	assert.Equal(t, "", ctx.String())
}

func TestCompactContext_SchemaLessStillListsValues(t *testing.T) {
	ctx := NewCompactContext("", RankedColumns{{Ref: schema.NewColumnRef("t", "c"), Examples: []string{"v"}}})
	assert.False(t, ctx.IsEmpty())
	assert.Contains(t, ctx.String(), "- t.c: e.g. v")
}

func TestBudget_Batches(t *testing.T) {
	b, err := NewBudget(25)
	require.NoError(t, err)

	records := make([]ValueRecord, 5)
	for i := range records {
		records[i] = NewValueRecord("t", "c", strings.Repeat("a", 10))
	}

	batches := b.Batches(records)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
}

func TestBudget_BatchesByCount(t *testing.T) {
	b := DefaultBudget().WithMaxBatchSize(10)
	records := make([]ValueRecord, 23)
	for i := range records {
		records[i] = NewValueRecord("t", "c", "x")
	}

	batches := b.Batches(records)
	require.Len(t, batches, 3)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 3)
}

func TestBudget_Invalid(t *testing.T) {
	_, err := NewBudget(0)
	require.Error(t, err)
	assert.Equal(t, 1, DefaultBudget().WithMaxBatchSize(-3).MaxBatchSize())
	assert.Nil(t, DefaultBudget().Batches(nil))
}

func TestBudget_Truncate(t *testing.T) {
	b, _ := NewBudget(5)
	assert.Equal(t, "hello", b.Truncate("hello world"))
	assert.Equal(t, "hi", b.Truncate("hi"))
}

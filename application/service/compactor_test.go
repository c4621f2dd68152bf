package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
)

func hit(table, column, value string, score float64) retrieval.Hit {
	return retrieval.NewHit(retrieval.NewValueRecord(table, column, value), score)
}

func TestCompactor_RetrieveRanksAndBounds(t *testing.T) {
	searcher := &staticSearcher{hits: []retrieval.Hit{
		hit("trades", "symbol", "BTC", 0.1),
		hit("trades", "venue", "bitstamp", 0.3),
		hit("trades", "symbol", "BTC", 0.2),
		hit("trades", "symbol", "ETH", 0.4),
		hit("assets", "name", "Bitcoin", 0.3),
	}}
	c := NewCompactor(searcher, nil, WithRetrievalOptions(retrieval.Options{KValues: 5, MaxColumns: 2, MaxExamples: 1}))

	ranked, err := c.Retrieve(context.Background(), "btc trades")
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.k)

	want := retrieval.RankedColumns{
		{Ref: schema.NewColumnRef("trades", "symbol"), BestScore: 0.1, Examples: []string{"BTC"}},
		{Ref: schema.NewColumnRef("assets", "name"), BestScore: 0.3, Examples: []string{"Bitcoin"}},
	}
	if diff := cmp.Diff(want, ranked); diff != "" {
		t.Errorf("ranked columns mismatch (-want +got):\n%s", diff)
	}
}

func TestCompactor_EmptyIndexYieldsEmptyContext(t *testing.T) {
	store := schema.NewStore(staticSource{columns: tradesColumns()}, nil)
	c := NewCompactor(&staticSearcher{}, store)

	cc, ranked, err := c.Context(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, ranked)
	assert.True(t, cc.IsEmpty())
	assert.Equal(t, "", cc.String())
}

func TestCompactor_NilSearcher(t *testing.T) {
	c := NewCompactor(nil, nil)

	ranked, err := c.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestCompactor_SearchFailure(t *testing.T) {
	c := NewCompactor(&staticSearcher{err: errors.New("embedder down")}, nil)

	_, _, err := c.Context(context.Background(), "anything")
	assert.ErrorContains(t, err, "embedder down")
}

func TestCompactor_ContextRendersImplicatedTables(t *testing.T) {
	columns := append(tradesColumns(), schema.NewColumn("users", "email", "text"))
	store := schema.NewStore(staticSource{columns: columns}, nil)
	searcher := &staticSearcher{hits: []retrieval.Hit{
		hit("trades", "symbol", "BTC", 0.1),
		hit("trades", "symbol", "ETH", 0.5),
	}}
	c := NewCompactor(searcher, store)

	cc, _, err := c.Context(context.Background(), "btc")
	require.NoError(t, err)

	want := "Database tables & columns (compact):\n" +
		"- trades: symbol (text), qty (numeric), traded_at (date)\n\n" +
		"Sample of data values in tables and columns:\n" +
		retrieval.ValuesPreface + "\n" +
		"- trades.symbol: e.g. BTC, ETH"
	assert.Equal(t, want, cc.String())
	assert.NotContains(t, cc.String(), "users")
}

func TestCompactor_DegradedSchemaKeepsValues(t *testing.T) {
	store := schema.NewStore(staticSource{err: errors.New("connection refused")}, nil)
	searcher := &staticSearcher{hits: []retrieval.Hit{hit("trades", "symbol", "BTC", 0.1)}}
	c := NewCompactor(searcher, store)

	cc, _, err := c.Context(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "", cc.Schema())
	assert.Equal(t, []string{"- trades.symbol: e.g. BTC"}, cc.ValueLines())
}

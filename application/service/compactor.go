package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
)

// ValueSearcher answers nearest-value queries.
type ValueSearcher interface {
	Search(ctx context.Context, text string, k int) ([]retrieval.Hit, error)
}

// CompactorOption configures a Compactor.
type CompactorOption func(*Compactor)

// WithRetrievalOptions sets the default retrieval bounds.
func WithRetrievalOptions(opts retrieval.Options) CompactorOption {
	return func(c *Compactor) {
		if opts.KValues > 0 {
			c.options.KValues = opts.KValues
		}
		if opts.MaxColumns > 0 {
			c.options.MaxColumns = opts.MaxColumns
		}
		if opts.MaxExamples > 0 {
			c.options.MaxExamples = opts.MaxExamples
		}
	}
}

// WithCompactorLogger sets the logger.
func WithCompactorLogger(l *slog.Logger) CompactorOption {
	return func(c *Compactor) {
		if l != nil {
			c.logger = l
		}
	}
}

// Compactor retrieves relevant column values for a text and renders them
// with the schema of the implicated tables.
type Compactor struct {
	values  ValueSearcher
	schema  *schema.Store
	options retrieval.Options
	logger  *slog.Logger
}

// NewCompactor creates a Compactor.
func NewCompactor(values ValueSearcher, store *schema.Store, opts ...CompactorOption) *Compactor {
	c := &Compactor{
		values:  values,
		schema:  store,
		options: retrieval.DefaultOptions(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Options returns the default retrieval bounds.
func (c *Compactor) Options() retrieval.Options { return c.options }

// Retrieve ranks the columns whose values are nearest to text using the
// default bounds.
func (c *Compactor) Retrieve(ctx context.Context, text string) (retrieval.RankedColumns, error) {
	return c.RetrieveWith(ctx, text, c.options)
}

// RetrieveWith ranks the columns whose values are nearest to text. An absent
// index yields an empty ranking.
func (c *Compactor) RetrieveWith(ctx context.Context, text string, opts retrieval.Options) (retrieval.RankedColumns, error) {
	if c.values == nil {
		return retrieval.RankedColumns{}, nil
	}
	hits, err := c.values.Search(ctx, text, opts.KValues)
	if err != nil {
		return nil, fmt.Errorf("search values: %w", err)
	}
	return retrieval.Rank(hits, opts.MaxColumns, opts.MaxExamples), nil
}

// Compact renders the ranked columns together with the compact schema of
// their tables. An empty ranking yields an empty context.
func (c *Compactor) Compact(ctx context.Context, ranked retrieval.RankedColumns) retrieval.CompactContext {
	if len(ranked) == 0 {
		return retrieval.CompactContext{}
	}
	var summary string
	if c.schema != nil {
		summary = c.schema.CompactSchemaForTables(ctx, ranked.Tables())
	}
	return retrieval.NewCompactContext(summary, ranked)
}

// Context retrieves and renders in one step.
func (c *Compactor) Context(ctx context.Context, text string) (retrieval.CompactContext, retrieval.RankedColumns, error) {
	ranked, err := c.Retrieve(ctx, text)
	if err != nil {
		return retrieval.CompactContext{}, nil, err
	}
	return c.Compact(ctx, ranked), ranked, nil
}

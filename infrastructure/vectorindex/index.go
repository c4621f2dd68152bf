// Package vectorindex is the in-process similarity index over sampled column
// values. Readers always see a complete snapshot; builds construct a new
// snapshot and swap it in.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

// ErrEmbeddingMismatch indicates the embedder returned the wrong number of vectors.
var ErrEmbeddingMismatch = errors.New("embedding count mismatch")

// Index answers nearest-value queries against the current snapshot.
type Index struct {
	embedder    provider.Embedder
	budget      retrieval.Budget
	parallelism int
	logger      *slog.Logger
	current     atomic.Pointer[Snapshot]
	buildMu     sync.Mutex
}

// Option configures an Index.
type Option func(*Index)

// WithBudget sets the per-batch embedding budget.
func WithBudget(b retrieval.Budget) Option {
	return func(ix *Index) { ix.budget = b }
}

// WithParallelism sets how many embedding batches run at once. Values <= 0
// are ignored.
func WithParallelism(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// New creates an empty Index.
func New(embedder provider.Embedder, opts ...Option) *Index {
	ix := &Index{
		embedder:    embedder,
		budget:      retrieval.DefaultBudget(),
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if c, ok := embedder.(provider.Capacity); ok && c.Capacity() > 0 && c.Capacity() < ix.budget.MaxBatchSize() {
		ix.budget = ix.budget.WithMaxBatchSize(c.Capacity())
	}
	return ix
}

// Snapshot returns the current snapshot, nil when nothing has been built.
func (ix *Index) Snapshot() *Snapshot {
	return ix.current.Load()
}

// Swap installs s and returns the previous snapshot.
func (ix *Index) Swap(s *Snapshot) *Snapshot {
	return ix.current.Swap(s)
}

// Len returns the number of values in the current snapshot.
func (ix *Index) Len() int {
	return ix.Snapshot().Len()
}

// Build embeds records into a new snapshot and swaps it in. Builds are
// serialized; each one embeds its own records. On error the previous
// snapshot stays.
func (ix *Index) Build(ctx context.Context, records []retrieval.ValueRecord) (*Snapshot, error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	snap, err := ix.Embed(ctx, records)
	if err != nil {
		return nil, err
	}
	ix.Swap(snap)
	return snap, nil
}

// BuildReport summarizes a column-driven build.
type BuildReport struct {
	Columns  int
	Values   int
	Skipped  []schema.ColumnRef
	Duration time.Duration
}

// BuildFromColumns samples each column, embeds the values and swaps in the
// result. Columns that fail to sample are skipped. Zero collected values
// leave an empty index without error.
func (ix *Index) BuildFromColumns(ctx context.Context, sampler Sampler, columns []schema.ColumnRef, perColumnLimit int) (BuildReport, error) {
	start := time.Now()

	corpus, err := Collect(ctx, sampler, columns, perColumnLimit, ix.logger)
	if err != nil {
		return BuildReport{}, fmt.Errorf("collect values: %w", err)
	}

	snap, err := ix.Build(ctx, corpus.Records)
	if err != nil {
		return BuildReport{}, err
	}

	report := BuildReport{
		Columns:  len(columns) - len(corpus.Skipped),
		Values:   snap.Len(),
		Skipped:  corpus.Skipped,
		Duration: time.Since(start),
	}
	ix.logger.InfoContext(ctx, "value index built",
		slog.Int("columns", report.Columns),
		slog.Int("values", report.Values),
		slog.Int("skipped", len(report.Skipped)),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// Embed produces a snapshot for records without installing it.
func (ix *Index) Embed(ctx context.Context, records []retrieval.ValueRecord) (*Snapshot, error) {
	valid := make([]retrieval.ValueRecord, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return NewSnapshot(nil, nil, time.Now().UTC())
	}
	if ix.embedder == nil {
		return nil, fmt.Errorf("embed values: %w", provider.ErrUnsupportedOperation)
	}

	batches := ix.budget.Batches(valid)
	results := make([][][]float64, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.parallelism)
	for i, batch := range batches {
		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, r := range batch {
				texts[j] = ix.budget.Truncate(r.Text())
			}
			resp, err := ix.embedder.Embed(gctx, provider.NewEmbeddingRequest(texts))
			if err != nil {
				return fmt.Errorf("embed batch %d: %w", i, err)
			}
			vecs := resp.Embeddings()
			if len(vecs) != len(batch) {
				return fmt.Errorf("%w: batch %d got %d vectors for %d values", ErrEmbeddingMismatch, i, len(vecs), len(batch))
			}
			results[i] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vectors := make([][]float64, 0, len(valid))
	for _, vecs := range results {
		vectors = append(vectors, vecs...)
	}
	return NewSnapshot(valid, vectors, time.Now().UTC())
}

// Search returns up to k values nearest to text. An empty index or k <= 0
// yields no hits without calling the embedder.
func (ix *Index) Search(ctx context.Context, text string, k int) ([]retrieval.Hit, error) {
	snap := ix.Snapshot()
	if snap.Len() == 0 || k <= 0 {
		return []retrieval.Hit{}, nil
	}
	if ix.embedder == nil {
		return nil, fmt.Errorf("embed query: %w", provider.ErrUnsupportedOperation)
	}

	resp, err := ix.embedder.Embed(ctx, provider.NewEmbeddingRequest([]string{ix.budget.Truncate(text)}))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vecs := resp.Embeddings()
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for query", ErrEmbeddingMismatch, len(vecs))
	}
	return snap.Nearest(vecs[0], k), nil
}

// Persist writes the current snapshot to store.
func (ix *Index) Persist(ctx context.Context, store *Store) error {
	return store.Save(ctx, ix.Snapshot())
}

// Load reads a snapshot from store and swaps it in.
func (ix *Index) Load(ctx context.Context, store *Store) (*Snapshot, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ix.Swap(snap)
	return snap, nil
}

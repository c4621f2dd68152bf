package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/infrastructure/catalog"
	"github.com/helixml/ticketsql/infrastructure/vectorindex"
)

// DefaultSampleLimit caps the distinct values sampled per column.
const DefaultSampleLimit = 200

// ErrNoLiveCatalog indicates a rebuild was requested without a live database.
var ErrNoLiveCatalog = errors.New("index rebuild requires a live catalog")

// CatalogReader introspects a live database and samples its values.
type CatalogReader interface {
	schema.Source
	vectorindex.Sampler
	Namespace() string
}

// IndexReport summarises a rebuild.
type IndexReport struct {
	Tables      int                `json:"tables"`
	Columns     int                `json:"columns"`
	TextColumns int                `json:"text_columns"`
	Values      int                `json:"values"`
	Skipped     []schema.ColumnRef `json:"skipped,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// Indexer rebuilds the persisted schema snapshot and value index.
type Indexer struct {
	catalog      CatalogReader
	index        *vectorindex.Index
	store        *vectorindex.Store
	snapshotPath string
	sampleLimit  int
	logger       *slog.Logger
}

// NewIndexer creates an Indexer. An empty snapshotPath skips writing the
// schema snapshot; a nil store skips persisting the value index.
func NewIndexer(reader CatalogReader, index *vectorindex.Index, store *vectorindex.Store, snapshotPath string, sampleLimit int, logger *slog.Logger) *Indexer {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		catalog:      reader,
		index:        index,
		store:        store,
		snapshotPath: snapshotPath,
		sampleLimit:  sampleLimit,
		logger:       logger,
	}
}

// Rebuild introspects the catalog, saves the schema snapshot, samples and
// embeds every text-like column, swaps the new index in and persists it.
// The previous index stays in place when any step fails.
func (i *Indexer) Rebuild(ctx context.Context) (IndexReport, error) {
	start := time.Now()
	if i.catalog == nil {
		return IndexReport{}, NewStageError(StageIntrospection, ErrNoLiveCatalog)
	}

	columns, err := i.catalog.Columns(ctx)
	if err != nil {
		return IndexReport{}, NewStageError(StageIntrospection, err)
	}

	if i.snapshotPath != "" {
		doc := catalog.SnapshotDocument{
			Namespace:  i.catalog.Namespace(),
			CapturedAt: time.Now().UTC(),
			Columns:    columns,
		}
		if err := catalog.SaveSnapshot(i.snapshotPath, doc); err != nil {
			return IndexReport{}, NewStageError(StageIntrospection, err)
		}
	}

	text := schema.TextLikeColumns(columns)
	built, err := i.index.BuildFromColumns(ctx, i.catalog, text, i.sampleLimit)
	if err != nil {
		return IndexReport{}, NewStageError(StageIndexing, err)
	}

	if i.store != nil {
		if err := i.index.Persist(ctx, i.store); err != nil {
			return IndexReport{}, NewStageError(StageIndexing, err)
		}
	}

	report := IndexReport{
		Tables:      len(schema.Tables(columns)),
		Columns:     len(columns),
		TextColumns: len(text),
		Values:      built.Values,
		Skipped:     built.Skipped,
		Duration:    time.Since(start),
	}
	i.logger.InfoContext(ctx, "indexes rebuilt",
		slog.Int("tables", report.Tables),
		slog.Int("columns", report.Columns),
		slog.Int("text_columns", report.TextColumns),
		slog.Int("values", report.Values),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// Package ticketsql turns support tickets into reviewed, read-only SQL.
//
// The client retrieves catalog values similar to the ticket text, compacts the
// matching tables into a schema context, asks a language model for a
// statement, has a second pass review it and finally checks it against the
// read-only safety gate.
//
// Basic usage:
//
//	client, err := ticketsql.New(
//	    ticketsql.WithCatalogURL(os.Getenv("CATALOG_URL")),
//	    ticketsql.WithOpenAI(os.Getenv("OPENAI_API_KEY")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Build the value index once per catalog change
//	if _, err := client.RebuildIndex(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Generate a statement for a ticket
//	result, err := client.Generate(ctx, "Show all BTC trades in 2024")
//	fmt.Println(result.SQL)
package ticketsql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/domain/ticket"
	"github.com/helixml/ticketsql/infrastructure/catalog"
	"github.com/helixml/ticketsql/infrastructure/provider"
	"github.com/helixml/ticketsql/infrastructure/vectorindex"
	"github.com/helixml/ticketsql/internal/config"
	"github.com/helixml/ticketsql/internal/database"
)

// Result is the outcome of a pipeline run.
type Result = service.Result

// Revision is the outcome of a feedback-driven revision.
type Revision = service.Revision

// Assessment is a feasibility judgement for a ticket.
type Assessment = service.Assessment

// IndexReport summarises an index rebuild.
type IndexReport = service.IndexReport

// Client is the main entry point for the ticketsql library.
type Client struct {
	db         *database.Database
	live       *catalog.Live
	store      *schema.Store
	index      *vectorindex.Index
	indexStore *vectorindex.Store
	compactor  *service.Compactor
	pipeline   *service.Pipeline
	indexer    *service.Indexer
	assessor   *service.Assessor

	textProvider   provider.TextGenerator
	localEmbedding *provider.LocalEmbedder
	embedder       provider.Embedder
	closers        []io.Closer

	rebuilds     singleflight.Group
	logger       *slog.Logger
	dataDir      string
	apiKeys      []string
	previewLimit int
	closed       atomic.Bool
	mu           sync.Mutex
}

// New creates a new Client with the given options. The persisted value index
// is loaded when it exists.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}
	snapshotPath := cfg.snapshotPath
	if snapshotPath == "" {
		snapshotPath = filepath.Join(dataDir, config.DefaultSchemaSnapshotFile)
	}
	valueIndexPath := cfg.valueIndexPath
	if valueIndexPath == "" {
		valueIndexPath = filepath.Join(dataDir, config.DefaultValueIndexFile)
	}

	ctx := context.Background()

	var db *database.Database
	var live *catalog.Live
	if cfg.catalogURL != "" {
		opened, err := database.NewDatabase(ctx, cfg.catalogURL)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		db = &opened
		live = catalog.NewLive(opened, cfg.catalogSchema)
	}

	source, err := selectSource(cfg.schemaSource, live, snapshotPath)
	if err != nil {
		return nil, closeOnError(db, err)
	}

	// Fall back to the built-in embedding model when no provider is configured
	var localEmbedding *provider.LocalEmbedder
	embedder := cfg.embeddingProvider
	if embedder == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = filepath.Join(dataDir, config.DefaultModelSubdir)
		}
		localEmbedding = provider.NewLocalEmbedder(modelDir)
		if localEmbedding.Available() {
			embedder = localEmbedding
			logger.Info("built-in embedding provider enabled", slog.String("model_dir", modelDir))
		} else {
			logger.Warn("no embedding provider available, value retrieval disabled", slog.String("model_dir", modelDir))
			localEmbedding = nil
		}
	}

	index := vectorindex.New(embedder,
		vectorindex.WithBudget(cfg.embeddingBudget),
		vectorindex.WithParallelism(cfg.embeddingParallelism),
		vectorindex.WithLogger(logger),
	)
	indexStore := vectorindex.NewStore(valueIndexPath)
	if embedder != nil && indexStore.Exists() {
		snap, err := index.Load(ctx, indexStore)
		if err != nil {
			logger.Warn("value index could not be loaded, starting empty",
				slog.String("path", valueIndexPath), slog.Any("error", err))
		} else {
			logger.Info("value index loaded",
				slog.String("path", valueIndexPath),
				slog.Int("values", snap.Len()),
				slog.Time("built_at", snap.BuiltAt()))
		}
	}

	store := schema.NewStore(source, logger)

	var searcher service.ValueSearcher
	if embedder != nil {
		searcher = index
	}
	compactor := service.NewCompactor(searcher, store,
		service.WithRetrievalOptions(cfg.retrieval),
		service.WithCompactorLogger(logger),
	)

	generator := service.NewGenerator(cfg.textProvider, cfg.modelSettings, logger)
	reviewer := service.NewReviewer(cfg.textProvider, compactor, cfg.modelSettings, logger)
	pipeline := service.NewPipeline(store, compactor, generator, reviewer,
		service.WithFullSchema(cfg.fullSchema),
		service.WithMaxRetries(cfg.maxRetries),
		service.WithValidator(query.NewValidator(cfg.strictValidation)),
		service.WithPipelineLogger(logger),
	)

	var reader service.CatalogReader
	if live != nil {
		reader = live
	}
	indexer := service.NewIndexer(reader, index, indexStore, snapshotPath, cfg.sampleLimit, logger)
	assessor := service.NewAssessor(cfg.textProvider, store, cfg.modelSettings, logger)

	return &Client{
		db:             db,
		live:           live,
		store:          store,
		index:          index,
		indexStore:     indexStore,
		compactor:      compactor,
		pipeline:       pipeline,
		indexer:        indexer,
		assessor:       assessor,
		textProvider:   cfg.textProvider,
		localEmbedding: localEmbedding,
		embedder:       embedder,
		closers:        cfg.closers,
		logger:         logger,
		dataDir:        dataDir,
		apiKeys:        cfg.apiKeys,
		previewLimit:   cfg.previewLimit,
	}, nil
}

// selectSource picks the schema source. Without an explicit choice the live
// catalog wins and an existing snapshot is the fallback.
func selectSource(choice schemaSource, live *catalog.Live, snapshotPath string) (schema.Source, error) {
	switch choice {
	case schemaSourceLive:
		if live == nil {
			return nil, ErrNoCatalog
		}
		return live, nil
	case schemaSourceSnapshot:
		if _, err := catalog.LoadSnapshot(snapshotPath); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoCatalog, err)
		}
		return catalog.NewSnapshot(snapshotPath), nil
	}
	if live != nil {
		return live, nil
	}
	if _, err := catalog.LoadSnapshot(snapshotPath); err == nil {
		return catalog.NewSnapshot(snapshotPath), nil
	}
	return nil, ErrNoCatalog
}

func closeOnError(db *database.Database, err error) error {
	if db == nil {
		return err
	}
	return errors.Join(err, db.Close())
}

// Generate runs the pipeline for a ticket and returns a validated statement.
func (c *Client) Generate(ctx context.Context, ticketText string) (Result, error) {
	if err := c.ready(); err != nil {
		return Result{}, err
	}
	return c.pipeline.Run(ctx, ticketText)
}

// GenerateTicket runs the pipeline for a structured ticket.
func (c *Client) GenerateTicket(ctx context.Context, t ticket.Ticket) (Result, error) {
	return c.Generate(ctx, t.Text())
}

// Revise folds reviewer feedback and discussion history into currentSQL. A
// negative maxRetries uses the configured default. Exhausted attempts return
// currentSQL unchanged with a fallback note rather than an error.
func (c *Client) Revise(ctx context.Context, currentSQL, ticketText string, history ticket.History, maxRetries int) (Revision, error) {
	if err := c.ready(); err != nil {
		return Revision{}, err
	}
	return c.pipeline.Revise(ctx, currentSQL, ticketText, history, maxRetries), nil
}

// Validate checks sql against the configured read-only gate. Failures wrap
// ErrUnsafeSQL.
func (c *Client) Validate(sql string) error {
	return c.pipeline.Validator().Check(sql)
}

// Preview runs a validated statement read-only against the live catalog and
// returns at most limit rows. A non-positive limit uses the configured default.
func (c *Client) Preview(ctx context.Context, sql string, limit int) (query.ResultSet, error) {
	if c.closed.Load() {
		return query.ResultSet{}, ErrClientClosed
	}
	if err := c.Validate(sql); err != nil {
		return query.ResultSet{}, service.NewStageError(service.StageValidation, err)
	}
	if c.live == nil {
		return query.ResultSet{}, ErrNoLiveCatalog
	}
	if limit <= 0 {
		limit = c.previewLimit
	}
	return c.live.Query(ctx, sql, limit)
}

// Assess judges whether a ticket can be answered from the catalog.
func (c *Client) Assess(ctx context.Context, ticketText string) (Assessment, error) {
	if err := c.ready(); err != nil {
		return Assessment{}, err
	}
	return c.assessor.Assess(ctx, ticketText)
}

// RebuildIndex re-introspects the live catalog, saves the schema snapshot and
// replaces the value index. Concurrent calls share one rebuild.
func (c *Client) RebuildIndex(ctx context.Context) (IndexReport, error) {
	if c.closed.Load() {
		return IndexReport{}, ErrClientClosed
	}
	if c.embedder == nil {
		return IndexReport{}, ErrNoEmbeddingProvider
	}
	v, err, _ := c.rebuilds.Do("rebuild", func() (any, error) {
		return c.indexer.Rebuild(ctx)
	})
	if err != nil {
		return IndexReport{}, err
	}
	return v.(IndexReport), nil
}

// SearchValues returns the k catalog values most similar to text. A
// non-positive k uses the configured retrieval depth.
func (c *Client) SearchValues(ctx context.Context, text string, k int) ([]retrieval.Hit, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.embedder == nil {
		return nil, ErrNoEmbeddingProvider
	}
	if k <= 0 {
		k = c.compactor.Options().KValues
	}
	return c.index.Search(ctx, text, k)
}

// Columns returns the current catalog columns.
func (c *Client) Columns(ctx context.Context) []schema.Column {
	return c.store.FetchSchema(ctx)
}

// DescribeSchema renders the named tables, or every table when none are given.
func (c *Client) DescribeSchema(ctx context.Context, tables ...string) string {
	if len(tables) == 0 {
		return c.store.FullSchema(ctx)
	}
	return c.store.CompactSchemaForTables(ctx, tables)
}

// IndexedValues returns the number of values in the loaded value index.
func (c *Client) IndexedValues() int {
	return c.index.Len()
}

// MaxRetries returns the default feedback retry count.
func (c *Client) MaxRetries() int {
	return c.pipeline.MaxRetries()
}

// HasLiveCatalog reports whether a database connection is configured.
func (c *Client) HasLiveCatalog() bool {
	return c.live != nil
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// APIKeys returns the keys accepted by the HTTP API.
func (c *Client) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

func (c *Client) ready() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.textProvider == nil {
		return ErrNoTextProvider
	}
	return nil
}

// Close releases the catalog connection, the built-in model and any
// registered resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.localEmbedding != nil {
		if err := c.localEmbedding.Close(); err != nil {
			c.logger.Error("failed to close local embedding", slog.Any("error", err))
		}
	}

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("close catalog: %w", err)
		}
	}

	c.logger.Info("ticketsql client closed")
	return nil
}

package ticketsql

import (
	"io"
	"log/slog"

	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/infrastructure/provider"
	"github.com/helixml/ticketsql/internal/config"
)

// schemaSource selects where the schema store reads columns from.
type schemaSource int

const (
	schemaSourceAuto schemaSource = iota
	schemaSourceLive
	schemaSourceSnapshot
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	catalogURL           string
	catalogSchema        string
	schemaSource         schemaSource
	snapshotPath         string
	valueIndexPath       string
	dataDir              string
	modelDir             string
	textProvider         provider.TextGenerator
	embeddingProvider    provider.Embedder
	logger               *slog.Logger
	apiKeys              []string
	embeddingBudget      retrieval.Budget
	embeddingParallelism int
	retrieval            retrieval.Options
	sampleLimit          int
	maxRetries           int
	fullSchema           bool
	strictValidation     bool
	previewLimit         int
	modelSettings        service.ModelSettings
	closers              []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		catalogSchema:        config.DefaultCatalogSchema,
		dataDir:              config.DefaultDataDir(),
		embeddingBudget:      retrieval.DefaultBudget(),
		embeddingParallelism: 1,
		retrieval:            retrieval.DefaultOptions(),
		sampleLimit:          config.DefaultValueSampleLimit,
		maxRetries:           config.DefaultFeedbackMaxRetries,
		previewLimit:         config.DefaultPreviewRowLimit,
		modelSettings:        service.DefaultModelSettings(),
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithCatalogURL connects the client to the database whose schema and values
// back generation. Both postgres:// and sqlite:/// URLs are accepted.
func WithCatalogURL(url string) Option {
	return func(c *clientConfig) {
		c.catalogURL = url
	}
}

// WithCatalogSchema sets the namespace introspected in the live catalog.
// Defaults to "public". Empty values are ignored.
func WithCatalogSchema(name string) Option {
	return func(c *clientConfig) {
		if name != "" {
			c.catalogSchema = name
		}
	}
}

// WithLiveSchema reads schema columns from the live catalog on every request.
func WithLiveSchema() Option {
	return func(c *clientConfig) {
		c.schemaSource = schemaSourceLive
	}
}

// WithSchemaSnapshot reads schema columns from the JSON snapshot at path
// instead of the live catalog.
func WithSchemaSnapshot(path string) Option {
	return func(c *clientConfig) {
		c.schemaSource = schemaSourceSnapshot
		if path != "" {
			c.snapshotPath = path
		}
	}
}

// WithSchemaSnapshotPath sets where index rebuilds write the schema snapshot
// without changing the schema source. Defaults to {dataDir}/schema.json.
func WithSchemaSnapshotPath(path string) Option {
	return func(c *clientConfig) {
		c.snapshotPath = path
	}
}

// WithValueIndexPath sets the persisted value index artifact.
// Defaults to {dataDir}/value_index.db.
func WithValueIndexPath(path string) Option {
	return func(c *clientConfig) {
		c.valueIndexPath = path
	}
}

// WithDataDir sets the directory holding the snapshot, index and models.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithModelDir sets the directory where built-in model files are stored.
// Defaults to {dataDir}/models if not specified.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithOpenAI sets OpenAI as the AI provider (text + embeddings).
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProvider(apiKey)
		c.textProvider = p
		c.embeddingProvider = p
		c.closers = append(c.closers, p)
	}
}

// WithOpenAIConfig sets OpenAI with custom configuration.
func WithOpenAIConfig(cfg provider.OpenAIConfig) Option {
	return func(c *clientConfig) {
		p := provider.NewOpenAIProviderFromConfig(cfg)
		c.textProvider = p
		c.embeddingProvider = p
		c.closers = append(c.closers, p)
	}
}

// WithAnthropic sets Anthropic Claude as the text generation provider.
// Requires a separate embedding provider since Anthropic doesn't provide embeddings.
func WithAnthropic(apiKey string) Option {
	return func(c *clientConfig) {
		p := provider.NewAnthropicProvider(apiKey)
		c.textProvider = p
		c.closers = append(c.closers, p)
	}
}

// WithAnthropicConfig sets Anthropic Claude with custom configuration.
func WithAnthropicConfig(cfg provider.AnthropicConfig) Option {
	return func(c *clientConfig) {
		p := provider.NewAnthropicProviderFromConfig(cfg)
		c.textProvider = p
		c.closers = append(c.closers, p)
	}
}

// WithTextProvider sets a custom text generation provider.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithEmbeddingProvider sets a custom embedding provider.
func WithEmbeddingProvider(p provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
	}
}

// WithEmbeddingBudget sets the character budget for value embedding batches.
func WithEmbeddingBudget(b retrieval.Budget) Option {
	return func(c *clientConfig) {
		c.embeddingBudget = b
	}
}

// WithEmbeddingParallelism sets how many embedding batches are dispatched concurrently.
// Defaults to 1. Values <= 0 are ignored.
func WithEmbeddingParallelism(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.embeddingParallelism = n
		}
	}
}

// WithRetrievalOptions bounds value retrieval. Non-positive fields keep
// their defaults.
func WithRetrievalOptions(opts retrieval.Options) Option {
	return func(c *clientConfig) {
		if opts.KValues > 0 {
			c.retrieval.KValues = opts.KValues
		}
		if opts.MaxColumns > 0 {
			c.retrieval.MaxColumns = opts.MaxColumns
		}
		if opts.MaxExamples > 0 {
			c.retrieval.MaxExamples = opts.MaxExamples
		}
	}
}

// WithValueSampleLimit caps the distinct values sampled per column during
// index rebuilds. Values <= 0 are ignored.
func WithValueSampleLimit(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.sampleLimit = n
		}
	}
}

// WithMaxRetries sets the default number of feedback retries after the first
// revision attempt. Negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithFullSchema includes the full schema in generation prompts alongside the
// compact context.
func WithFullSchema(include bool) Option {
	return func(c *clientConfig) {
		c.fullSchema = include
	}
}

// WithStrictValidation also rejects statements that hold more than one
// top-level statement.
func WithStrictValidation(strict bool) Option {
	return func(c *clientConfig) {
		c.strictValidation = strict
	}
}

// WithPreviewLimit caps the rows returned by Preview when the caller passes
// no limit. Values <= 0 are ignored.
func WithPreviewLimit(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.previewLimit = n
		}
	}
}

// WithModelSettings sets temperature and token limits for structured model calls.
func WithModelSettings(s service.ModelSettings) Option {
	return func(c *clientConfig) {
		c.modelSettings = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the API keys for HTTP API authentication.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = keys
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(c io.Closer) Option {
	return func(cfg *clientConfig) {
		cfg.closers = append(cfg.closers, c)
	}
}

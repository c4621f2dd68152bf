package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., CHAT_ENDPOINT_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.ticketsql
	DataDir string `envconfig:"DATA_DIR"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// CatalogURL is the database queries are generated for.
	// Env: CATALOG_URL (postgres://... or sqlite:///path)
	CatalogURL string `envconfig:"CATALOG_URL"`

	// CatalogSchema is the namespace introspected.
	// Env: CATALOG_SCHEMA (default: public)
	CatalogSchema string `envconfig:"CATALOG_SCHEMA" default:"public"`

	// SchemaSource selects live introspection or the saved snapshot.
	// Env: SCHEMA_SOURCE (default: live)
	SchemaSource string `envconfig:"SCHEMA_SOURCE" default:"live"`

	// SchemaSnapshotPath is the saved schema file.
	// Env: SCHEMA_SNAPSHOT_PATH
	// Default: {data_dir}/schema.json
	SchemaSnapshotPath string `envconfig:"SCHEMA_SNAPSHOT_PATH"`

	// ValueIndexPath is the persisted value index.
	// Env: VALUE_INDEX_PATH
	// Default: {data_dir}/value_index.db
	ValueIndexPath string `envconfig:"VALUE_INDEX_PATH"`

	// ModelDir holds local embedding models.
	// Env: MODEL_DIR
	// Default: {data_dir}/models
	ModelDir string `envconfig:"MODEL_DIR"`

	// ValueSampleLimit caps distinct values sampled per column.
	// Env: VALUE_SAMPLE_LIMIT (default: 200)
	ValueSampleLimit int `envconfig:"VALUE_SAMPLE_LIMIT" default:"200"`

	// Retrieval bounds value retrieval.
	Retrieval RetrievalEnv `envconfig:"RETRIEVAL"`

	// FeedbackMaxRetries bounds revision retries.
	// Env: FEEDBACK_MAX_RETRIES (default: 3)
	FeedbackMaxRetries int `envconfig:"FEEDBACK_MAX_RETRIES" default:"3"`

	// GenerationIncludeFullSchema adds the full schema to generation prompts.
	// Env: GENERATION_INCLUDE_FULL_SCHEMA (default: false)
	GenerationIncludeFullSchema bool `envconfig:"GENERATION_INCLUDE_FULL_SCHEMA" default:"false"`

	// StrictValidation rejects multi-statement input.
	// Env: STRICT_VALIDATION (default: false)
	StrictValidation bool `envconfig:"STRICT_VALIDATION" default:"false"`

	// PreviewRowLimit is the default preview row limit.
	// Env: PREVIEW_ROW_LIMIT (default: 50)
	PreviewRowLimit int `envconfig:"PREVIEW_ROW_LIMIT" default:"50"`

	// APIKeys is a comma-separated list of valid API keys.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// EmbeddingEndpoint configures the embedding AI service.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// ChatEndpoint configures the chat AI service.
	ChatEndpoint EndpointEnv `envconfig:"CHAT_ENDPOINT"`

	// HTTPCacheDir is the directory for caching HTTP responses to disk.
	// When set, POST request/response pairs are cached to avoid repeated API calls.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`
}

// RetrievalEnv holds environment configuration for value retrieval.
type RetrievalEnv struct {
	// KValues is the number of nearest values fetched.
	// Env: RETRIEVAL_K_VALUES (default: 30)
	KValues int `envconfig:"K_VALUES" default:"30"`

	// MaxColumns caps the ranked columns.
	// Env: RETRIEVAL_MAX_COLUMNS (default: 10)
	MaxColumns int `envconfig:"MAX_COLUMNS" default:"10"`

	// MaxExamples caps examples per column.
	// Env: RETRIEVAL_MAX_EXAMPLES (default: 10)
	MaxExamples int `envconfig:"MAX_EXAMPLES" default:"10"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// Provider is the implementation (openai or anthropic).
	// Env: *_PROVIDER (default: openai)
	Provider string `envconfig:"PROVIDER" default:"openai"`

	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier (e.g., text-embedding-3-small).
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// NumParallelTasks is the number of parallel tasks.
	// Env: *_NUM_PARALLEL_TASKS (default: 1)
	NumParallelTasks int `envconfig:"NUM_PARALLEL_TASKS" default:"1"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// MaxTokens is the maximum token limit.
	// Env: *_MAX_TOKENS (default: 4000)
	MaxTokens int `envconfig:"MAX_TOKENS" default:"4000"`

	// Temperature is the sampling temperature.
	// Env: *_TEMPERATURE (default: 0)
	Temperature float64 `envconfig:"TEMPERATURE" default:"0"`

	// MaxBatchChars is the maximum total characters per embedding batch.
	// Env: *_MAX_BATCH_CHARS (default: 16000)
	MaxBatchChars int `envconfig:"MAX_BATCH_CHARS" default:"16000"`

	// MaxBatchSize is the maximum number of texts per embedding batch.
	// Env: *_MAX_BATCH_SIZE (default: 64)
	MaxBatchSize int `envconfig:"MAX_BATCH_SIZE" default:"64"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "TICKETSQL" would require TICKETSQL_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}

	cfg = cfg.Apply(
		WithCatalogURL(e.CatalogURL),
		WithCatalogSchema(e.CatalogSchema),
		WithSchemaSource(parseSchemaSource(e.SchemaSource)),
		WithSchemaSnapshotPath(e.SchemaSnapshotPath),
		WithValueIndexPath(e.ValueIndexPath),
		WithModelDir(e.ModelDir),
		WithValueSampleLimit(e.ValueSampleLimit),
		WithRetrieval(e.Retrieval.KValues, e.Retrieval.MaxColumns, e.Retrieval.MaxExamples),
		WithFeedbackMaxRetries(e.FeedbackMaxRetries),
		WithIncludeFullSchema(e.GenerationIncludeFullSchema),
		WithStrictValidation(e.StrictValidation),
		WithPreviewRowLimit(e.PreviewRowLimit),
	)

	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseAPIKeys(e.APIKeys)))
	}

	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint()))
	}
	if e.ChatEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithChatEndpoint(e.ChatEndpoint.ToEndpoint()))
	}

	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithProvider(parseProvider(e.Provider)),
		WithModel(e.Model),
		WithNumParallelTasks(e.NumParallelTasks),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
		WithMaxTokens(e.MaxTokens),
		WithTemperature(e.Temperature),
		WithMaxBatchChars(e.MaxBatchChars),
		WithMaxBatchSize(e.MaxBatchSize),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}

	return NewEndpointWithOptions(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

// parseSchemaSource parses a schema source string.
func parseSchemaSource(s string) SchemaSource {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snapshot", "cached":
		return SchemaSourceSnapshot
	default:
		return SchemaSourceLive
	}
}

// parseProvider parses a provider name.
func parseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anthropic", "claude":
		return ProviderAnthropic
	default:
		return ProviderOpenAI
	}
}

// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                  = "0.0.0.0"
	DefaultPort                  = 8080
	DefaultLogLevel              = "INFO"
	DefaultCatalogSchema         = "public"
	DefaultSchemaSnapshotFile    = "schema.json"
	DefaultValueIndexFile        = "value_index.db"
	DefaultModelSubdir           = "models"
	DefaultValueSampleLimit      = 200
	DefaultRetrievalKValues      = 30
	DefaultRetrievalMaxColumns   = 10
	DefaultRetrievalMaxExamples  = 10
	DefaultFeedbackMaxRetries    = 3
	DefaultPreviewRowLimit       = 50
	DefaultEndpointParallelTasks = 1
	DefaultEndpointTimeout       = 60 * time.Second
	DefaultEndpointMaxRetries    = 5
	DefaultEndpointInitialDelay  = 2 * time.Second
	DefaultEndpointBackoffFactor = 2.0
	DefaultEndpointMaxTokens     = 4000
	DefaultEndpointMaxBatchChars = 16000
	DefaultEndpointMaxBatchSize  = 64
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// SchemaSource selects where schema questions are answered from.
type SchemaSource string

// SchemaSource values.
const (
	SchemaSourceLive     SchemaSource = "live"
	SchemaSourceSnapshot SchemaSource = "snapshot"
)

// Provider names an AI provider implementation.
type Provider string

// Provider values.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Endpoint configures an AI service endpoint.
type Endpoint struct {
	provider         Provider
	baseURL          string
	model            string
	apiKey           string
	numParallelTasks int
	timeout          time.Duration
	maxRetries       int
	initialDelay     time.Duration
	backoffFactor    float64
	maxTokens        int
	temperature      float64
	maxBatchChars    int
	maxBatchSize     int
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		provider:         ProviderOpenAI,
		numParallelTasks: DefaultEndpointParallelTasks,
		timeout:          DefaultEndpointTimeout,
		maxRetries:       DefaultEndpointMaxRetries,
		initialDelay:     DefaultEndpointInitialDelay,
		backoffFactor:    DefaultEndpointBackoffFactor,
		maxTokens:        DefaultEndpointMaxTokens,
		maxBatchChars:    DefaultEndpointMaxBatchChars,
		maxBatchSize:     DefaultEndpointMaxBatchSize,
	}
}

// Provider returns the provider implementation to use.
func (e Endpoint) Provider() Provider { return e.provider }

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// NumParallelTasks returns the number of parallel tasks.
func (e Endpoint) NumParallelTasks() int { return e.numParallelTasks }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// MaxTokens returns the maximum token limit.
func (e Endpoint) MaxTokens() int { return e.maxTokens }

// Temperature returns the sampling temperature.
func (e Endpoint) Temperature() float64 { return e.temperature }

// MaxBatchChars returns the maximum total characters per embedding batch.
func (e Endpoint) MaxBatchChars() int { return e.maxBatchChars }

// MaxBatchSize returns the maximum number of texts per embedding batch.
func (e Endpoint) MaxBatchSize() int { return e.maxBatchSize }

// IsConfigured returns true if the endpoint has required configuration.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithProvider sets the provider implementation.
func WithProvider(p Provider) EndpointOption {
	return func(e *Endpoint) { e.provider = p }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithNumParallelTasks sets the parallel task count.
func WithNumParallelTasks(n int) EndpointOption {
	return func(e *Endpoint) { e.numParallelTasks = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithMaxTokens sets the maximum token limit.
func WithMaxTokens(n int) EndpointOption {
	return func(e *Endpoint) { e.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) EndpointOption {
	return func(e *Endpoint) { e.temperature = t }
}

// WithMaxBatchChars sets the maximum total characters per embedding batch.
func WithMaxBatchChars(n int) EndpointOption {
	return func(e *Endpoint) { e.maxBatchChars = n }
}

// WithMaxBatchSize sets the maximum number of texts per embedding batch.
func WithMaxBatchSize(n int) EndpointOption {
	return func(e *Endpoint) { e.maxBatchSize = n }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host               string
	port               int
	dataDir            string
	catalogURL         string
	catalogSchema      string
	schemaSource       SchemaSource
	schemaSnapshotPath string
	valueIndexPath     string
	modelDir           string
	logLevel           string
	logFormat          LogFormat
	valueSampleLimit   int
	kValues            int
	maxColumns         int
	maxExamples        int
	feedbackMaxRetries int
	includeFullSchema  bool
	strictValidation   bool
	previewRowLimit    int
	embeddingEndpoint  *Endpoint
	chatEndpoint       *Endpoint
	apiKeys            []string
	httpCacheDir       string
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ticketsql"
	}
	return filepath.Join(home, ".ticketsql")
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		dataDir:            DefaultDataDir(),
		catalogSchema:      DefaultCatalogSchema,
		schemaSource:       SchemaSourceLive,
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		valueSampleLimit:   DefaultValueSampleLimit,
		kValues:            DefaultRetrievalKValues,
		maxColumns:         DefaultRetrievalMaxColumns,
		maxExamples:        DefaultRetrievalMaxExamples,
		feedbackMaxRetries: DefaultFeedbackMaxRetries,
		previewRowLimit:    DefaultPreviewRowLimit,
		apiKeys:            []string{},
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// CatalogURL returns the target database URL.
func (c AppConfig) CatalogURL() string { return c.catalogURL }

// CatalogSchema returns the catalog namespace to introspect.
func (c AppConfig) CatalogSchema() string { return c.catalogSchema }

// SchemaSource returns the schema provider variant.
func (c AppConfig) SchemaSource() SchemaSource { return c.schemaSource }

// SchemaSnapshotPath returns the schema snapshot file, defaulting into the data directory.
func (c AppConfig) SchemaSnapshotPath() string {
	if c.schemaSnapshotPath != "" {
		return c.schemaSnapshotPath
	}
	return filepath.Join(c.dataDir, DefaultSchemaSnapshotFile)
}

// ValueIndexPath returns the value index artifact, defaulting into the data directory.
func (c AppConfig) ValueIndexPath() string {
	if c.valueIndexPath != "" {
		return c.valueIndexPath
	}
	return filepath.Join(c.dataDir, DefaultValueIndexFile)
}

// ModelDir returns the local embedding model directory.
func (c AppConfig) ModelDir() string {
	if c.modelDir != "" {
		return c.modelDir
	}
	return filepath.Join(c.dataDir, DefaultModelSubdir)
}

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// ValueSampleLimit returns the per-column distinct value cap.
func (c AppConfig) ValueSampleLimit() int { return c.valueSampleLimit }

// RetrievalKValues returns the number of nearest values retrieved per request.
func (c AppConfig) RetrievalKValues() int { return c.kValues }

// RetrievalMaxColumns returns the ranked column cap.
func (c AppConfig) RetrievalMaxColumns() int { return c.maxColumns }

// RetrievalMaxExamples returns the per-column example cap.
func (c AppConfig) RetrievalMaxExamples() int { return c.maxExamples }

// FeedbackMaxRetries returns the revision retry bound.
func (c AppConfig) FeedbackMaxRetries() int { return c.feedbackMaxRetries }

// IncludeFullSchema reports whether generation prompts carry the full schema.
func (c AppConfig) IncludeFullSchema() bool { return c.includeFullSchema }

// StrictValidation reports whether multi-statement input is rejected.
func (c AppConfig) StrictValidation() bool { return c.strictValidation }

// PreviewRowLimit returns the default preview row limit.
func (c AppConfig) PreviewRowLimit() int { return c.previewRowLimit }

// EmbeddingEndpoint returns the embedding endpoint config.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// ChatEndpoint returns the chat endpoint config.
func (c AppConfig) ChatEndpoint() *Endpoint { return c.chatEndpoint }

// APIKeys returns the configured API keys.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// HTTPCacheDir returns the HTTP response cache directory.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.dataDir = dir }
}

// WithCatalogURL sets the target database URL.
func WithCatalogURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.catalogURL = url }
}

// WithCatalogSchema sets the catalog namespace.
func WithCatalogSchema(name string) AppConfigOption {
	return func(c *AppConfig) {
		if name != "" {
			c.catalogSchema = name
		}
	}
}

// WithSchemaSource sets the schema provider variant.
func WithSchemaSource(s SchemaSource) AppConfigOption {
	return func(c *AppConfig) { c.schemaSource = s }
}

// WithSchemaSnapshotPath sets the schema snapshot file.
func WithSchemaSnapshotPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.schemaSnapshotPath = path }
}

// WithValueIndexPath sets the value index artifact path.
func WithValueIndexPath(path string) AppConfigOption {
	return func(c *AppConfig) { c.valueIndexPath = path }
}

// WithModelDir sets the local embedding model directory.
func WithModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.modelDir = dir }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithValueSampleLimit sets the per-column distinct value cap.
func WithValueSampleLimit(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.valueSampleLimit = n
		}
	}
}

// WithRetrieval sets the retrieval bounds. Non-positive values are ignored.
func WithRetrieval(kValues, maxColumns, maxExamples int) AppConfigOption {
	return func(c *AppConfig) {
		if kValues > 0 {
			c.kValues = kValues
		}
		if maxColumns > 0 {
			c.maxColumns = maxColumns
		}
		if maxExamples > 0 {
			c.maxExamples = maxExamples
		}
	}
}

// WithFeedbackMaxRetries sets the revision retry bound.
func WithFeedbackMaxRetries(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n >= 0 {
			c.feedbackMaxRetries = n
		}
	}
}

// WithIncludeFullSchema sets whether generation prompts carry the full schema.
func WithIncludeFullSchema(include bool) AppConfigOption {
	return func(c *AppConfig) { c.includeFullSchema = include }
}

// WithStrictValidation sets whether multi-statement input is rejected.
func WithStrictValidation(strict bool) AppConfigOption {
	return func(c *AppConfig) { c.strictValidation = strict }
}

// WithPreviewRowLimit sets the default preview row limit.
func WithPreviewRowLimit(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.previewRowLimit = n
		}
	}
}

// WithEmbeddingEndpoint sets the embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithChatEndpoint sets the chat endpoint.
func WithChatEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.chatEndpoint = &e }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithHTTPCacheDir sets the HTTP response cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Credentials in the catalog URL and API keys are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("catalog_url", c.MaskedCatalogURL()),
		slog.String("catalog_schema", c.catalogSchema),
		slog.String("schema_source", string(c.schemaSource)),
		slog.String("value_index", c.ValueIndexPath()),
		slog.String("embedding_base_url", endpointBaseURL(c.embeddingEndpoint)),
		slog.String("embedding_model", endpointModel(c.embeddingEndpoint)),
		slog.String("chat_base_url", endpointBaseURL(c.chatEndpoint)),
		slog.String("chat_model", endpointModel(c.chatEndpoint)),
		slog.Int("api_keys_count", len(c.apiKeys)),
		slog.Bool("strict_validation", c.strictValidation),
	}
}

// MaskedCatalogURL returns the catalog URL with any password removed.
func (c AppConfig) MaskedCatalogURL() string {
	if c.catalogURL == "" {
		return "(not configured)"
	}
	if strings.HasPrefix(c.catalogURL, "sqlite:") {
		return c.catalogURL
	}
	u, err := url.Parse(c.catalogURL)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}

func endpointBaseURL(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	if e.BaseURL() == "" {
		return "(provider default)"
	}
	return e.BaseURL()
}

func endpointModel(e *Endpoint) string {
	if e == nil {
		return "(not configured)"
	}
	return e.Model()
}

// ParseAPIKeys parses a comma-separated string of API keys.
func ParseAPIKeys(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

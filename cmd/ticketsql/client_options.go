package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/helixml/ticketsql"
	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/infrastructure/provider"
	"github.com/helixml/ticketsql/internal/config"
)

// clientOptions returns the ticketsql.Option slice derived from AppConfig:
// catalog and storage paths, pipeline tuning, and the embedding and chat
// providers. Callers append entrypoint-specific options before ticketsql.New.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) ([]ticketsql.Option, error) {
	opts := []ticketsql.Option{
		ticketsql.WithLogger(logger),
		ticketsql.WithDataDir(cfg.DataDir()),
		ticketsql.WithModelDir(cfg.ModelDir()),
		ticketsql.WithValueIndexPath(cfg.ValueIndexPath()),
		ticketsql.WithValueSampleLimit(cfg.ValueSampleLimit()),
		ticketsql.WithMaxRetries(cfg.FeedbackMaxRetries()),
		ticketsql.WithFullSchema(cfg.IncludeFullSchema()),
		ticketsql.WithStrictValidation(cfg.StrictValidation()),
		ticketsql.WithPreviewLimit(cfg.PreviewRowLimit()),
		ticketsql.WithRetrievalOptions(retrieval.Options{
			KValues:     cfg.RetrievalKValues(),
			MaxColumns:  cfg.RetrievalMaxColumns(),
			MaxExamples: cfg.RetrievalMaxExamples(),
		}),
	}

	opts = append(opts, catalogOptions(cfg)...)

	embOpts, err := embeddingOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding config: %w", err)
	}
	opts = append(opts, embOpts...)

	opts = append(opts, chatOptions(cfg)...)

	if keys := cfg.APIKeys(); len(keys) > 0 {
		opts = append(opts, ticketsql.WithAPIKeys(keys...))
	}

	return opts, nil
}

// catalogOptions selects the schema source. An explicit snapshot source
// ignores the catalog URL; otherwise the live catalog is preferred and an
// existing snapshot is the fallback.
func catalogOptions(cfg config.AppConfig) []ticketsql.Option {
	if cfg.SchemaSource() == config.SchemaSourceSnapshot {
		return []ticketsql.Option{ticketsql.WithSchemaSnapshot(cfg.SchemaSnapshotPath())}
	}

	opts := []ticketsql.Option{ticketsql.WithSchemaSnapshotPath(cfg.SchemaSnapshotPath())}
	if url := cfg.CatalogURL(); url != "" {
		opts = append(opts,
			ticketsql.WithCatalogURL(url),
			ticketsql.WithCatalogSchema(cfg.CatalogSchema()),
		)
	}
	return opts
}

// embeddingOptions returns options for the embedding provider when the
// embedding endpoint is fully configured, or an empty slice otherwise. The
// client then falls back to the local model when one is present.
func embeddingOptions(cfg config.AppConfig) ([]ticketsql.Option, error) {
	endpoint := cfg.EmbeddingEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil, nil
	}

	openaiCfg := provider.OpenAIConfig{
		APIKey:         endpoint.APIKey(),
		BaseURL:        endpoint.BaseURL(),
		EmbeddingModel: endpoint.Model(),
		Timeout:        endpoint.Timeout(),
		MaxRetries:     endpoint.MaxRetries(),
		InitialDelay:   endpoint.InitialDelay(),
		BackoffFactor:  endpoint.BackoffFactor(),
		BatchSize:      endpoint.MaxBatchSize(),
		HTTPClient:     cachingClient(cfg, endpoint),
	}
	p := provider.NewOpenAIProviderFromConfig(openaiCfg)

	budget, err := retrieval.NewBudget(endpoint.MaxBatchChars())
	if err != nil {
		return nil, fmt.Errorf("max batch chars: %w", err)
	}

	return []ticketsql.Option{
		ticketsql.WithEmbeddingProvider(p),
		ticketsql.WithCloser(p),
		ticketsql.WithEmbeddingBudget(budget),
		ticketsql.WithEmbeddingParallelism(endpoint.NumParallelTasks()),
	}, nil
}

// chatOptions returns options for the chat provider when the chat endpoint
// is fully configured, or an empty slice otherwise.
func chatOptions(cfg config.AppConfig) []ticketsql.Option {
	endpoint := cfg.ChatEndpoint()
	if endpoint == nil || !endpoint.IsConfigured() {
		return nil
	}

	opts := []ticketsql.Option{
		ticketsql.WithModelSettings(service.ModelSettings{
			Temperature: endpoint.Temperature(),
			MaxTokens:   endpoint.MaxTokens(),
		}),
	}

	switch endpoint.Provider() {
	case config.ProviderAnthropic:
		opts = append(opts, ticketsql.WithAnthropicConfig(provider.AnthropicConfig{
			APIKey:        endpoint.APIKey(),
			BaseURL:       endpoint.BaseURL(),
			Model:         endpoint.Model(),
			Timeout:       endpoint.Timeout(),
			MaxRetries:    endpoint.MaxRetries(),
			InitialDelay:  endpoint.InitialDelay(),
			BackoffFactor: endpoint.BackoffFactor(),
			HTTPClient:    cachingClient(cfg, endpoint),
		}))
	default:
		// WithOpenAIConfig would also replace the embedder, so the chat
		// provider is registered as a text provider only.
		p := provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
			APIKey:        endpoint.APIKey(),
			BaseURL:       endpoint.BaseURL(),
			ChatModel:     endpoint.Model(),
			Timeout:       endpoint.Timeout(),
			MaxRetries:    endpoint.MaxRetries(),
			InitialDelay:  endpoint.InitialDelay(),
			BackoffFactor: endpoint.BackoffFactor(),
			HTTPClient:    cachingClient(cfg, endpoint),
		})
		opts = append(opts, ticketsql.WithTextProvider(p), ticketsql.WithCloser(p))
	}
	return opts
}

// cachingClient returns an HTTP client that replays cached responses when
// HTTP_CACHE_DIR is set, or nil to use the provider's default client.
func cachingClient(cfg config.AppConfig, endpoint *config.Endpoint) *http.Client {
	cacheDir := cfg.HTTPCacheDir()
	if cacheDir == "" {
		return nil
	}
	return &http.Client{
		Timeout:   endpoint.Timeout(),
		Transport: provider.NewCachingTransport(cacheDir, nil),
	}
}

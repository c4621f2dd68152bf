package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/ticketsql/infrastructure/api"
	"github.com/helixml/ticketsql/internal/config"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(envFile *string) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server with the streamable MCP endpoint at /mcp.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATA_DIR                     Data directory (default: ~/.ticketsql)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  API_KEYS                     Comma-separated keys protecting index rebuilds

  CATALOG_URL                  Catalog database URL (postgres:// or sqlite:///)
  CATALOG_SCHEMA               Postgres schema to introspect (default: public)
  SCHEMA_SOURCE                live or snapshot (default: live, falling back to the snapshot)
  SCHEMA_SNAPSHOT_PATH         Schema snapshot file (default: {data_dir}/schema.json)
  VALUE_INDEX_PATH             Value index file (default: {data_dir}/value_index.db)
  MODEL_DIR                    Local embedding models (default: {data_dir}/models)

  VALUE_SAMPLE_LIMIT           Distinct values sampled per column (default: 200)
  RETRIEVAL_K_VALUES           Values retrieved per ticket (default: 30)
  RETRIEVAL_MAX_COLUMNS        Columns in the compact context (default: 10)
  RETRIEVAL_MAX_EXAMPLES       Examples per column (default: 10)
  FEEDBACK_MAX_RETRIES         Revision retries after the first attempt (default: 3)
  GENERATION_INCLUDE_FULL_SCHEMA  Send the whole schema to the model (default: false)
  STRICT_VALIDATION            Reject statements with warnings (default: false)
  PREVIEW_ROW_LIMIT            Rows returned by preview (default: 50)

  EMBEDDING_ENDPOINT_*         Embedding service configuration
    BASE_URL                   Base URL (e.g., https://api.openai.com/v1)
    MODEL                      Model identifier (e.g., text-embedding-3-small)
    API_KEY                    API key for authentication
    NUM_PARALLEL_TASKS         Concurrent requests (default: 1)
    TIMEOUT                    Request timeout in seconds (default: 60)
    MAX_RETRIES                Retry attempts (default: 5)
    MAX_BATCH_CHARS            Characters per embedding batch (default: 16000)

  CHAT_ENDPOINT_*              Chat model configuration
    PROVIDER                   openai or anthropic (default: openai)
    (same fields as EMBEDDING_ENDPOINT, plus TEMPERATURE and MAX_TOKENS)

  HTTP_CACHE_DIR               Cache provider responses on disk (development)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	client, cfg, logger, err := openClient(envFile)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	cfg = applyServeOverrides(cfg, host, port)
	addr := cfg.Addr()

	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, "starting ticketsql", attrs...)

	apiServer := api.NewAPIServer(client, version)
	router := apiServer.Router()
	apiServer.MountRoutes()

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"ticketsql","version":"%s","docs":"/docs"}`, version)
	})

	docsRouter := apiServer.DocsRouter("/docs/openapi.json")
	router.Mount("/docs", docsRouter.Routes())

	server := api.NewServer(addr, logger)
	server.Router().Mount("/", router)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-sigChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("shutdown error", slog.Any("error", err))
	}
	return <-errCh
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/helixml/ticketsql"
	"github.com/helixml/ticketsql/internal/config"
	"github.com/helixml/ticketsql/internal/log"
)

// openClient loads configuration, builds the process logger and creates a
// client. The caller closes the client.
func openClient(envFile string, extra ...ticketsql.Option) (*ticketsql.Client, config.AppConfig, *slog.Logger, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, config.AppConfig{}, nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, config.AppConfig{}, nil, fmt.Errorf("create data directory: %w", err)
	}

	logger := log.Configure(cfg)

	opts, err := clientOptions(cfg, logger)
	if err != nil {
		return nil, config.AppConfig{}, nil, err
	}

	client, err := ticketsql.New(append(opts, extra...)...)
	if err != nil {
		return nil, config.AppConfig{}, nil, fmt.Errorf("create ticketsql client: %w", err)
	}
	return client, cfg, logger, nil
}

func closeClient(client *ticketsql.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close ticketsql client", slog.Any("error", err))
	}
}

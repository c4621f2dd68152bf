package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/helixml/ticketsql/internal/mcp"
)

func stdioCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants generate, revise and check SQL for tickets. Logs go to
stderr so stdout carries only protocol messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(*envFile)
		},
	}
}

func runStdio(envFile string) error {
	client, cfg, logger, err := openClient(envFile)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	logger.Info("starting MCP server",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
		slog.Bool("live_catalog", client.HasLiveCatalog()),
		slog.Int("indexed_values", client.IndexedValues()),
	)

	return mcp.NewServer(client, client, version, logger).ServeStdio()
}

// Package main is the entry point for the ticketsql CLI.
//
//	@title						ticketsql API
//	@version					1.0
//	@description				Turns support tickets into reviewed, read-only SQL
//	@host						localhost:8080
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	APIKeyAuth
//	@in							header
//	@name						X-API-KEY
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixml/ticketsql/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "ticketsql",
		Short: "Ticket to read-only SQL",
		Long: `ticketsql turns support tickets into reviewed, validated, read-only SQL.

It retrieves the schema and sampled column values relevant to a ticket, drafts
a statement with a language model, reviews it, and rejects anything that is
not a single SELECT or WITH statement.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory); DATA_DIR/.env fills unset values")

	cmd.AddCommand(serveCmd(&envFile))
	cmd.AddCommand(stdioCmd(&envFile))
	cmd.AddCommand(indexCmd(&envFile))
	cmd.AddCommand(generateCmd(&envFile))
	cmd.AddCommand(reviseCmd(&envFile))
	cmd.AddCommand(validateCmd(&envFile))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

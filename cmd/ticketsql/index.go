package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func indexCmd(envFile *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the schema snapshot and value index",
		Long: `Introspect the live catalog, save the schema snapshot and rebuild the value
index from sampled text column values. Requires CATALOG_URL and an embedding
provider (EMBEDDING_ENDPOINT_* or a local model under MODEL_DIR).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			client, _, logger, err := openClient(*envFile)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			report, err := client.RebuildIndex(cmd.Context())
			if err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}
			return writeOutput(cmd.OutOrStdout(), format, report, func() string {
				return fmt.Sprintf("indexed %d values from %d text columns (%d tables, %d columns) in %s",
					report.Values, report.TextColumns, report.Tables, report.Columns, report.Duration.Round(time.Millisecond))
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", string(formatText), "Output format: text, json, yaml")

	return cmd
}

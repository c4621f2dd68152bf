package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helixml/ticketsql"
	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/ticket"
)

func generateCmd(envFile *string) *cobra.Command {
	var (
		key         string
		description string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "generate [summary]",
		Short: "Generate read-only SQL for a ticket",
		Long: `Generate a reviewed, validated read-only statement for a ticket.

The summary is taken from the arguments, or from stdin when "-" or no
arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}
			summary, err := argsOrStdin(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			client, _, logger, err := openClient(*envFile)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			result, err := client.GenerateTicket(cmd.Context(), ticket.New(key, summary, description))
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, result, func() string {
				return result.SQL
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Ticket key, e.g. OPS-42")
	cmd.Flags().StringVar(&description, "description", "", "Ticket description")
	cmd.Flags().StringVarP(&output, "output", "o", string(formatText), "Output format: text, json, yaml")

	return cmd
}

// reviseInput is the document read by revise --input.
type reviseInput struct {
	Ticket     string           `yaml:"ticket"`
	SQL        string           `yaml:"sql"`
	History    []ticket.Comment `yaml:"history"`
	MaxRetries *int             `yaml:"max_retries"`
}

func reviseCmd(envFile *string) *cobra.Command {
	var (
		input      string
		sqlText    string
		ticketText string
		feedback   []string
		maxRetries int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "revise",
		Short: "Revise SQL using reviewer feedback",
		Long: `Fold reviewer feedback into a statement. When every attempt fails the
original statement is returned unchanged with a fallback note.

Provide the statement and ticket with flags, or a YAML or JSON document with
--input (use "-" for stdin):

  ticket: "How many BTC trades happened in 2024?"
  sql: "SELECT COUNT(*) FROM trades"
  history:
    - author: ana
      body: only count BTC
  max_retries: 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseFormat(output)
			if err != nil {
				return err
			}

			in := reviseInput{Ticket: ticketText, SQL: sqlText, History: ticket.NewHistory(feedback...)}
			if input != "" {
				if in, err = readReviseInput(input, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if strings.TrimSpace(in.SQL) == "" || strings.TrimSpace(in.Ticket) == "" {
				return errors.New("revise needs both a statement and a ticket")
			}
			retries := maxRetries
			if in.MaxRetries != nil {
				retries = *in.MaxRetries
			}

			client, _, logger, err := openClient(*envFile)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			revision, err := client.Revise(cmd.Context(), in.SQL, in.Ticket, in.History, retries)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), format, revision, func() string {
				return revision.SQL
			})
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "YAML or JSON revision document, or - for stdin")
	cmd.Flags().StringVar(&sqlText, "sql", "", "Statement to revise")
	cmd.Flags().StringVar(&ticketText, "ticket", "", "Ticket text the statement answers")
	cmd.Flags().StringArrayVar(&feedback, "feedback", nil, "Feedback message, oldest first (repeatable)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "Retries after the first attempt (default: FEEDBACK_MAX_RETRIES)")
	cmd.Flags().StringVarP(&output, "output", "o", string(formatText), "Output format: text, json, yaml")

	return cmd
}

func validateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [sql]",
		Short: "Check SQL against the read-only safety gate",
		Long: `Check a statement against the read-only safety gate without connecting to
the catalog. Exits non-zero when the statement is rejected. The statement is
read from stdin when "-" or no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := argsOrStdin(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}

			if err := query.NewValidator(cfg.StrictValidation()).Check(sql); err != nil {
				if errors.Is(err, ticketsql.ErrUnsafeSQL) {
					return fmt.Errorf("rejected: %w", err)
				}
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
}

func readReviseInput(path string, stdin io.Reader) (reviseInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return reviseInput{}, fmt.Errorf("read revision input: %w", err)
	}

	// JSON is a subset of YAML, so one decoder serves both.
	var in reviseInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return reviseInput{}, fmt.Errorf("parse revision input: %w", err)
	}
	return in, nil
}

func argsOrStdin(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no input: pass it as arguments or on stdin")
	}
	return text, nil
}

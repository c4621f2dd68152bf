package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

// Generator drafts a statement from ticket text and compacted context.
type Generator struct {
	model  structuredModel
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(llm provider.TextGenerator, settings ModelSettings, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		model:  structuredModel{llm: llm, settings: settings},
		logger: logger,
	}
}

// Generate asks the model for a draft. fullSchema is optional. Any model or
// decoding failure is reported as ErrGenerationFailed; no fallback statement
// is produced.
func (g *Generator) Generate(ctx context.Context, ticketText, compactContext, fullSchema string) (query.Candidate, error) {
	if g.model.llm == nil {
		return query.Candidate{}, fmt.Errorf("%w: %w", ErrGenerationFailed, provider.ErrUnsupportedOperation)
	}

	var out query.Candidate
	prompt := generatorPrompt(ticketText, compactContext, fullSchema)
	if err := g.model.call(ctx, candidateSchema, generatorSystem, prompt, &out); err != nil {
		return query.Candidate{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	out.SQL = strings.TrimSpace(out.SQL)
	if out.IsEmpty() {
		return query.Candidate{}, fmt.Errorf("%w: %w: empty sql", ErrGenerationFailed, ErrMalformedResponse)
	}
	g.logger.DebugContext(ctx, "draft generated", slog.Int("length", len(out.SQL)))
	return out, nil
}

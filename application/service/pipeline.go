// Package service orchestrates retrieval, generation, review and validation
// into the ticket-to-SQL pipeline and its maintenance jobs.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/domain/ticket"
)

// Result is the outcome of a fresh generation.
type Result struct {
	// SQL is the reviewed statement that passed validation.
	SQL string `json:"sql"`
	// Draft is the statement before review.
	Draft string `json:"draft"`
	// Notes explains the changes made during review.
	Notes string `json:"notes"`
	// Context is the compact context the draft was generated from.
	Context string `json:"context"`
	// Columns are the ranked columns behind the context.
	Columns retrieval.RankedColumns `json:"columns"`
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithFullSchema includes the full schema in generation prompts.
func WithFullSchema(include bool) PipelineOption {
	return func(p *Pipeline) {
		p.fullSchema = include
	}
}

// WithMaxRetries sets the revision retry bound. Negative values are ignored.
func WithMaxRetries(n int) PipelineOption {
	return func(p *Pipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithValidator sets the statement gate.
func WithValidator(v query.Validator) PipelineOption {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline turns ticket text into a validated read-only statement.
type Pipeline struct {
	schema     *schema.Store
	compactor  *Compactor
	generator  *Generator
	reviewer   *Reviewer
	validator  query.Validator
	fullSchema bool
	maxRetries int
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(store *schema.Store, compactor *Compactor, generator *Generator, reviewer *Reviewer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		schema:     store,
		compactor:  compactor,
		generator:  generator,
		reviewer:   reviewer,
		validator:  query.NewValidator(false),
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validator returns the statement gate.
func (p *Pipeline) Validator() query.Validator { return p.validator }

// MaxRetries returns the revision retry bound.
func (p *Pipeline) MaxRetries() int { return p.maxRetries }

// Run retrieves context, drafts, reviews and validates. There is no retry:
// a rejected statement fails the run at the validation stage.
func (p *Pipeline) Run(ctx context.Context, ticketText string) (Result, error) {
	start := time.Now()

	compact, ranked, err := p.compactor.Context(ctx, ticketText)
	if err != nil {
		return Result{}, NewStageError(StageIndexing, err)
	}

	var full string
	if p.fullSchema && p.schema != nil {
		full = p.schema.FullSchema(ctx)
	}

	draft, err := p.generator.Generate(ctx, ticketText, compact.String(), full)
	if err != nil {
		return Result{}, NewStageError(StageGeneration, err)
	}

	reviewed, err := p.reviewer.Review(ctx, draft.SQL)
	if err != nil {
		return Result{}, NewStageError(StageReview, err)
	}

	if err := p.validator.Check(reviewed.SQL); err != nil {
		p.logger.WarnContext(ctx, "generated statement rejected", slog.Any("error", err))
		return Result{}, NewStageError(StageValidation, err)
	}

	p.logger.InfoContext(ctx, "statement generated",
		slog.Int("columns", len(ranked)),
		slog.Duration("duration", time.Since(start)),
	)
	return Result{
		SQL:     reviewed.SQL,
		Draft:   draft.SQL,
		Notes:   reviewed.Notes,
		Context: compact.String(),
		Columns: ranked,
	}, nil
}

// Revise updates currentSQL from feedback with the bounded retry loop. A
// negative maxRetries uses the configured bound; larger values are capped
// at it.
func (p *Pipeline) Revise(ctx context.Context, currentSQL, ticketText string, history ticket.History, maxRetries int) Revision {
	if maxRetries < 0 || maxRetries > p.maxRetries {
		maxRetries = p.maxRetries
	}
	loop := NewFeedbackLoop(p.reviewer, p.validator, p.logger)
	return loop.Update(ctx, currentSQL, ticketText, history, maxRetries)
}

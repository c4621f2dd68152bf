package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/ticket"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

// Reviewer polishes drafts and revises statements from feedback.
type Reviewer struct {
	model     structuredModel
	compactor *Compactor
	logger    *slog.Logger
}

// NewReviewer creates a Reviewer. compactor supplies fresh context for
// revisions and may be nil.
func NewReviewer(llm provider.TextGenerator, compactor *Compactor, settings ModelSettings, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{
		model:     structuredModel{llm: llm, settings: settings},
		compactor: compactor,
		logger:    logger,
	}
}

// Review asks the model to correct, secure and simplify sql.
func (r *Reviewer) Review(ctx context.Context, sql string) (query.Reviewed, error) {
	return r.ask(ctx, reviewerSystem, reviewerPrompt(sql))
}

// Revise asks the model to update currentSQL from the ticket and its
// history. The context is rebuilt from the ticket text; a failure to build
// it is logged and the revision carries on without context.
func (r *Reviewer) Revise(ctx context.Context, currentSQL, ticketText string, history ticket.History) (query.Reviewed, error) {
	var compact string
	if r.compactor != nil {
		cc, _, err := r.compactor.Context(ctx, ticketText)
		if err != nil {
			r.logger.WarnContext(ctx, "revision context unavailable, continuing without it", slog.Any("error", err))
		} else {
			compact = cc.String()
		}
	}
	return r.ask(ctx, reviserSystem, reviserPrompt(ticketText, currentSQL, history.Render(), compact))
}

func (r *Reviewer) ask(ctx context.Context, system, prompt string) (query.Reviewed, error) {
	if r.model.llm == nil {
		return query.Reviewed{}, fmt.Errorf("%w: %w", ErrReviewFailed, provider.ErrUnsupportedOperation)
	}

	var out query.Reviewed
	if err := r.model.call(ctx, reviewedSchema, system, prompt, &out); err != nil {
		return query.Reviewed{}, fmt.Errorf("%w: %w", ErrReviewFailed, err)
	}
	out.SQL = strings.TrimSpace(out.SQL)
	if out.IsEmpty() {
		return query.Reviewed{}, fmt.Errorf("%w: %w: empty sql", ErrReviewFailed, ErrMalformedResponse)
	}
	return out, nil
}

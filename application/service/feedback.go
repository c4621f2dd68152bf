package service

import (
	"context"
	"log/slog"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/ticket"
)

// FallbackNotes is returned with the unchanged statement when every revision
// attempt failed.
const FallbackNotes = "No changes made due to repeated errors."

// DefaultMaxRetries is the retry bound used when none is configured.
const DefaultMaxRetries = 3

// Reviser produces a revised statement.
type Reviser interface {
	Revise(ctx context.Context, currentSQL, ticketText string, history ticket.History) (query.Reviewed, error)
}

// SQLChecker gates a statement.
type SQLChecker interface {
	Check(sql string) error
}

// Revision is the outcome of a feedback update.
type Revision struct {
	query.Reviewed
	// Attempts is the number of revision attempts made.
	Attempts int `json:"attempts"`
	// Applied is false when the fallback returned the original statement.
	Applied bool `json:"applied"`
}

// FeedbackLoop revises a statement until the result passes the checker or
// the retry bound is exhausted.
type FeedbackLoop struct {
	reviser Reviser
	checker SQLChecker
	logger  *slog.Logger
}

// NewFeedbackLoop creates a FeedbackLoop.
func NewFeedbackLoop(reviser Reviser, checker SQLChecker, logger *slog.Logger) *FeedbackLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackLoop{reviser: reviser, checker: checker, logger: logger}
}

// Update makes up to maxRetries+1 revision attempts. A failing revision or a
// rejected statement counts as a failed attempt. After the last failed
// attempt the original statement is returned unchanged with FallbackNotes.
// Context cancellation ends the loop early with the fallback.
func (l *FeedbackLoop) Update(ctx context.Context, currentSQL, ticketText string, history ticket.History, maxRetries int) Revision {
	if maxRetries < 0 {
		maxRetries = 0
	}

	attempts := 0
	for attempts <= maxRetries {
		attempts++

		revised, err := l.reviser.Revise(ctx, currentSQL, ticketText, history)
		if err == nil {
			err = l.checker.Check(revised.SQL)
		}
		if err == nil {
			return Revision{Reviewed: revised, Attempts: attempts, Applied: true}
		}

		l.logger.WarnContext(ctx, "revision attempt failed",
			slog.Int("attempt", attempts),
			slog.Int("max_attempts", maxRetries+1),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	return Revision{
		Reviewed: query.NewReviewed(currentSQL, FallbackNotes),
		Attempts: attempts,
		Applied:  false,
	}
}

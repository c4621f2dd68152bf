package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/ticket"
)

type scriptedReviser struct {
	results []query.Reviewed
	errs    []error
	calls   int
}

func (r *scriptedReviser) Revise(_ context.Context, _, _ string, _ ticket.History) (query.Reviewed, error) {
	i := r.calls
	r.calls++
	if i < len(r.errs) && r.errs[i] != nil {
		return query.Reviewed{}, r.errs[i]
	}
	if i < len(r.results) {
		return r.results[i], nil
	}
	return query.Reviewed{}, errModelDown
}

func TestFeedbackLoop_FallsBackAfterRepeatedFailures(t *testing.T) {
	reviser := &scriptedReviser{}
	loop := NewFeedbackLoop(reviser, query.NewValidator(false), nil)

	got := loop.Update(context.Background(), "SELECT 1", "ticket", ticket.NewHistory("add a column"), 1)

	assert.Equal(t, 2, reviser.calls)
	assert.Equal(t, 2, got.Attempts)
	assert.False(t, got.Applied)
	assert.Equal(t, "SELECT 1", got.SQL)
	assert.Equal(t, "No changes made due to repeated errors.", got.Notes)
}

func TestFeedbackLoop_RejectedStatementCountsAsFailure(t *testing.T) {
	reviser := &scriptedReviser{results: []query.Reviewed{
		query.NewReviewed("DELETE FROM orders", "cleaned up"),
		query.NewReviewed("SELECT id, status FROM orders", "added status"),
	}}
	loop := NewFeedbackLoop(reviser, query.NewValidator(false), nil)

	got := loop.Update(context.Background(), "SELECT id FROM orders", "ticket", nil, 3)

	assert.True(t, got.Applied)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "SELECT id, status FROM orders", got.SQL)
	assert.Equal(t, "added status", got.Notes)
}

func TestFeedbackLoop_RecoversFromReviserError(t *testing.T) {
	reviser := &scriptedReviser{
		errs:    []error{errors.New("timeout")},
		results: []query.Reviewed{{}, query.NewReviewed("WITH x AS (SELECT 1) SELECT * FROM x", "")},
	}
	loop := NewFeedbackLoop(reviser, query.NewValidator(false), nil)

	got := loop.Update(context.Background(), "SELECT 1", "ticket", nil, 1)

	assert.True(t, got.Applied)
	assert.Equal(t, 2, got.Attempts)
}

func TestFeedbackLoop_ZeroRetriesMakesOneAttempt(t *testing.T) {
	reviser := &scriptedReviser{}
	loop := NewFeedbackLoop(reviser, query.NewValidator(false), nil)

	got := loop.Update(context.Background(), "SELECT 1", "ticket", nil, 0)

	assert.Equal(t, 1, reviser.calls)
	assert.Equal(t, FallbackNotes, got.Notes)
}

func TestFeedbackLoop_StrictCheckerRejectsStackedStatements(t *testing.T) {
	reviser := &scriptedReviser{results: []query.Reviewed{
		query.NewReviewed("SELECT 1; SELECT 2", "two"),
	}}
	loop := NewFeedbackLoop(reviser, query.NewValidator(true), nil)

	got := loop.Update(context.Background(), "SELECT 1", "ticket", nil, 0)

	assert.False(t, got.Applied)
	assert.Equal(t, "SELECT 1", got.SQL)
}

func TestFeedbackLoop_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reviser := &scriptedReviser{errs: []error{context.Canceled, context.Canceled, context.Canceled}}
	loop := NewFeedbackLoop(reviser, query.NewValidator(false), nil)

	got := loop.Update(ctx, "SELECT 1", "ticket", nil, 2)

	assert.Equal(t, 1, got.Attempts)
	assert.False(t, got.Applied)
}

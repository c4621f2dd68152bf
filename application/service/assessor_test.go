package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/ticketsql/domain/schema"
)

func TestAssessor_Assess(t *testing.T) {
	var prompt string
	llm := newStubLLM().on(assessorSystem, func(user string) (string, error) {
		prompt = user
		return `<think>looking at tables</think>{
			"feasible": true,
			"confidence": 1.4,
			"complexity": "simple",
			"reasoning": "trades holds symbols and dates",
			"required_tables": ["trades", "prices", "trades"],
			"missing_information": []
		}`, nil
	})
	store := schema.NewStore(staticSource{columns: tradesColumns()}, nil)

	got, err := NewAssessor(llm, store, DefaultModelSettings(), nil).Assess(context.Background(), "count BTC trades")
	require.NoError(t, err)

	assert.True(t, got.Feasible)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, ComplexitySimple, got.Complexity)
	assert.Equal(t, []string{"trades"}, got.RequiredTables)
	assert.Equal(t, []string{`table "prices" is not in the schema`}, got.MissingInformation)
	assert.Contains(t, prompt, "- trades: symbol (text), qty (numeric), traded_at (date)")
}

func TestAssessor_AssessFailure(t *testing.T) {
	store := schema.NewStore(staticSource{}, nil)

	_, err := NewAssessor(newStubLLM(), store, DefaultModelSettings(), nil).Assess(context.Background(), "x")
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestNormalizeAssessment(t *testing.T) {
	got := normalizeAssessment(Assessment{
		Confidence:         -0.5,
		Complexity:         "unknown",
		MissingInformation: []string{"", "date range"},
	}, nil)

	assert.Zero(t, got.Confidence)
	assert.Equal(t, ComplexityModerate, got.Complexity)
	assert.Equal(t, []string{"date range"}, got.MissingInformation)
	assert.Empty(t, got.RequiredTables)
}

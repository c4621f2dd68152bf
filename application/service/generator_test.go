package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/ticketsql/infrastructure/provider"
)

func TestGenerator_Generate(t *testing.T) {
	llm := newStubLLM().reply(generatorSystem, candidateJSON("SELECT symbol FROM trades"))
	g := NewGenerator(llm, ModelSettings{Temperature: 0, MaxTokens: 512}, nil)

	out, err := g.Generate(context.Background(), "list symbols", "trades: symbol (text)", "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT symbol FROM trades", out.SQL)

	calls := llm.calls()
	require.Len(t, calls, 1)
	temp, pinned := calls[0].Temperature()
	assert.True(t, pinned)
	assert.Zero(t, temp)
	assert.Equal(t, 512, calls[0].MaxTokens())
	rs, ok := calls[0].ResponseSchema()
	require.True(t, ok)
	assert.Equal(t, "sql_candidate", rs.Name())
	assert.Contains(t, calls[0].Messages()[1].Content(), "list symbols")
}

func TestGenerator_Failures(t *testing.T) {
	tests := []struct {
		name    string
		llm     provider.TextGenerator
		wantErr []error
	}{
		{"no model", nil, []error{ErrGenerationFailed, provider.ErrUnsupportedOperation}},
		{"model down", newStubLLM(), []error{ErrGenerationFailed, errModelDown}},
		{"malformed", newStubLLM().reply(generatorSystem, "not json"), []error{ErrGenerationFailed, ErrMalformedResponse}},
		{"empty sql", newStubLLM().reply(generatorSystem, candidateJSON("  ")), []error{ErrGenerationFailed, ErrMalformedResponse}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.llm, DefaultModelSettings(), nil).Generate(context.Background(), "t", "", "")
			for _, want := range tt.wantErr {
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestGenerator_TrimsSQL(t *testing.T) {
	llm := newStubLLM().reply(generatorSystem, candidateJSON("\n SELECT 1 \n"))
	out, err := NewGenerator(llm, DefaultModelSettings(), nil).Generate(context.Background(), "t", "", "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out.SQL)
}

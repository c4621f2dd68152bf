package service

import (
	"context"
	"fmt"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

// Response contracts for structured model calls.
var (
	candidateSchema  = provider.MustResponseSchema("sql_candidate", query.Candidate{})
	reviewedSchema   = provider.MustResponseSchema("reviewed_sql", query.Reviewed{})
	assessmentSchema = provider.MustResponseSchema("ticket_assessment", Assessment{})
)

// ModelSettings controls every structured model call.
type ModelSettings struct {
	Temperature float64
	MaxTokens   int
}

// DefaultModelSettings pins temperature to zero.
func DefaultModelSettings() ModelSettings {
	return ModelSettings{Temperature: 0}
}

type structuredModel struct {
	llm      provider.TextGenerator
	settings ModelSettings
}

// call sends a system and user message and decodes the reply into out.
func (m structuredModel) call(ctx context.Context, schema provider.ResponseSchema, system, user string, out any) error {
	req := provider.NewChatCompletionRequest([]provider.Message{
		provider.SystemMessage(system),
		provider.UserMessage(user),
	}).WithTemperature(m.settings.Temperature).WithResponseSchema(schema)
	if m.settings.MaxTokens > 0 {
		req = req.WithMaxTokens(m.settings.MaxTokens)
	}

	resp, err := m.llm.ChatCompletion(ctx, req)
	if err != nil {
		return err
	}
	if err := schema.Decode(resp.Content(), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, schema.Name(), err)
	}
	return nil
}

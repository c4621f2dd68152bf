package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

var errModelDown = errors.New("model unavailable")

// stubLLM answers chat completions by system message.
type stubLLM struct {
	mu       sync.Mutex
	handlers map[string]func(user string) (string, error)
	requests []provider.ChatCompletionRequest
}

func newStubLLM() *stubLLM {
	return &stubLLM{handlers: map[string]func(string) (string, error){}}
}

func (s *stubLLM) on(system string, fn func(user string) (string, error)) *stubLLM {
	s.handlers[system] = fn
	return s
}

func (s *stubLLM) reply(system, content string) *stubLLM {
	return s.on(system, func(string) (string, error) { return content, nil })
}

func (s *stubLLM) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	var system, user string
	for _, m := range req.Messages() {
		switch m.Role() {
		case "system":
			system = m.Content()
		case "user":
			user = m.Content()
		}
	}
	fn, ok := s.handlers[system]
	if !ok {
		return provider.ChatCompletionResponse{}, errModelDown
	}
	content, err := fn(user)
	if err != nil {
		return provider.ChatCompletionResponse{}, err
	}
	return provider.NewChatCompletionResponse(content, "stop", provider.NewUsage(0, 0, 0)), nil
}

func (s *stubLLM) calls() []provider.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.ChatCompletionRequest(nil), s.requests...)
}

// staticSearcher returns fixed hits.
type staticSearcher struct {
	hits []retrieval.Hit
	err  error
	k    int
}

func (s *staticSearcher) Search(_ context.Context, _ string, k int) ([]retrieval.Hit, error) {
	s.k = k
	if s.err != nil {
		return nil, s.err
	}
	return s.hits[:min(k, len(s.hits))], nil
}

// staticSource serves fixed columns.
type staticSource struct {
	columns []schema.Column
	err     error
}

func (s staticSource) Columns(_ context.Context) ([]schema.Column, error) {
	return s.columns, s.err
}

func tradesColumns() []schema.Column {
	return []schema.Column{
		schema.NewColumn("trades", "symbol", "text"),
		schema.NewColumn("trades", "qty", "numeric"),
		schema.NewColumn("trades", "traded_at", "date"),
	}
}

// letterEmbedder maps text to its a-z letter counts.
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	texts := req.Texts()
	vecs := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, 26)
		for _, r := range strings.ToLower(t) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			}
		}
		vecs[i] = v
	}
	return provider.NewEmbeddingResponse(vecs, provider.NewUsage(0, 0, 0)), nil
}

func newSchemaStore(source schema.Source) *schema.Store {
	return schema.NewStore(source, nil)
}

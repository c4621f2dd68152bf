// Package testprovider provides deterministic text and embedding providers
// for tests that exercise the full pipeline without a model endpoint.
package testprovider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/infrastructure/provider"
)

// Response schema names used by the pipeline's structured calls.
const (
	SchemaCandidate  = "sql_candidate"
	SchemaReviewed   = "reviewed_sql"
	SchemaAssessment = "ticket_assessment"
)

// ErrUnscripted is returned for a request whose schema has no reply.
var ErrUnscripted = errors.New("testprovider: no reply scripted")

// Scripted answers chat completions by response schema name.
type Scripted struct {
	mu       sync.Mutex
	replies  map[string]func(user string) (string, error)
	requests []provider.ChatCompletionRequest
}

// NewScripted creates a Scripted generator with no replies.
func NewScripted() *Scripted {
	return &Scripted{replies: map[string]func(string) (string, error){}}
}

// On registers fn for requests carrying the named response schema.
func (s *Scripted) On(schemaName string, fn func(user string) (string, error)) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[schemaName] = fn
	return s
}

// Reply registers fixed content for the named response schema.
func (s *Scripted) Reply(schemaName, content string) *Scripted {
	return s.On(schemaName, func(string) (string, error) { return content, nil })
}

// Candidate scripts the generator to draft sql.
func (s *Scripted) Candidate(sql string) *Scripted {
	return s.Reply(SchemaCandidate, Marshal(query.Candidate{SQL: sql}))
}

// Reviewed scripts the reviewer and reviser to return sql with notes.
func (s *Scripted) Reviewed(sql, notes string) *Scripted {
	return s.Reply(SchemaReviewed, Marshal(query.NewReviewed(sql, notes)))
}

// Fail scripts the named schema to fail with err.
func (s *Scripted) Fail(schemaName string, err error) *Scripted {
	return s.On(schemaName, func(string) (string, error) { return "", err })
}

// ChatCompletion implements provider.TextGenerator.
func (s *Scripted) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var fn func(string) (string, error)
	if rs, ok := req.ResponseSchema(); ok {
		fn = s.replies[rs.Name()]
	}
	s.mu.Unlock()

	if fn == nil {
		return provider.ChatCompletionResponse{}, ErrUnscripted
	}
	var user string
	for _, m := range req.Messages() {
		if m.Role() == "user" {
			user = m.Content()
		}
	}
	content, err := fn(user)
	if err != nil {
		return provider.ChatCompletionResponse{}, err
	}
	return provider.NewChatCompletionResponse(content, "stop", provider.NewUsage(0, 0, 0)), nil
}

// Requests returns the requests received so far.
func (s *Scripted) Requests() []provider.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]provider.ChatCompletionRequest(nil), s.requests...)
}

// Marshal encodes v as JSON, panicking on failure.
func Marshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// LetterEmbedder maps text to its a-z letter counts, so values sharing
// letters land close together.
type LetterEmbedder struct{}

// Embed implements provider.Embedder.
func (LetterEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
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

var (
	_ provider.TextGenerator = (*Scripted)(nil)
	_ provider.Embedder      = LetterEmbedder{}
)

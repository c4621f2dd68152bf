package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer mimics the OpenAI embeddings endpoint with
// deterministic 3-dimensional vectors, counting requests in counter.
func fakeEmbeddingServer(t *testing.T, counter *atomic.Int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.Add(1)

		var body struct {
			Input any    `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var texts []string
		switch v := body.Input.(type) {
		case string:
			texts = []string{v}
		case []any:
			for _, item := range v {
				texts = append(texts, item.(string))
			}
		}

		data := make([]map[string]any, len(texts))
		for i := range texts {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{0.1, 0.2, float64(len(texts[i]))},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  body.Model,
			"usage": map[string]int{
				"prompt_tokens": len(texts) * 4,
				"total_tokens":  len(texts) * 4,
			},
		})
	}))
}

// fakeChatServer answers every chat completion with content and records the
// last request body.
func fakeChatServer(t *testing.T, content string, last *map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		*last = body

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  body["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]int{"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10},
		})
	}))
}

type answer struct {
	SQL string `json:"sql" description:"the query"`
}

func TestOpenAIProvider_ChatCompletionStructured(t *testing.T) {
	var last map[string]any
	srv := fakeChatServer(t, `{"sql":"SELECT 1"}`, &last)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		ChatModel: "test-chat",
	})

	schema := MustResponseSchema("answer", answer{})
	req := NewChatCompletionRequest([]Message{
		SystemMessage("be precise"),
		UserMessage("hello"),
	}).WithTemperature(0).WithResponseSchema(schema)

	resp, err := p.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "stop", resp.FinishReason())
	assert.Equal(t, 10, resp.Usage().TotalTokens())

	var got answer
	require.NoError(t, schema.Decode(resp.Content(), &got))
	assert.Equal(t, "SELECT 1", got.SQL)

	assert.Equal(t, "test-chat", last["model"])
	temp, ok := last["temperature"].(float64)
	require.True(t, ok, "pinned zero temperature must be sent")
	assert.Less(t, temp, 1e-6)

	format, ok := last["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	js := format["json_schema"].(map[string]any)
	assert.Equal(t, "answer", js["name"])
	assert.Equal(t, true, js["strict"])
}

func TestOpenAIProvider_ChatCompletionSchemaAsInstructions(t *testing.T) {
	var last map[string]any
	srv := fakeChatServer(t, `{"sql":"SELECT 1"}`, &last)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:                  "test-key",
		BaseURL:                 srv.URL,
		DisableStructuredOutput: true,
	})

	req := NewChatCompletionRequest([]Message{UserMessage("hello")}).
		WithResponseSchema(MustResponseSchema("answer", answer{}))

	_, err := p.ChatCompletion(context.Background(), req)
	require.NoError(t, err)

	_, hasFormat := last["response_format"]
	assert.False(t, hasFormat)
	_, hasTemp := last["temperature"]
	assert.False(t, hasTemp, "unpinned temperature uses the provider default")

	msgs := last["messages"].([]any)
	require.Len(t, msgs, 2)
	lastMsg := msgs[1].(map[string]any)
	assert.Equal(t, "system", lastMsg["role"])
	assert.Contains(t, lastMsg["content"], "JSON schema")
}

func TestOpenAIProvider_ChatCompletionClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		InitialDelay: time.Millisecond,
	})

	_, err := p.ChatCompletion(context.Background(), NewChatCompletionRequest([]Message{UserMessage("hi")}))
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.StatusCode())
	assert.Equal(t, "chat_completion", provErr.Operation())
}

func TestOpenAIProvider_EmbedEmpty(t *testing.T) {
	var counter atomic.Int64
	srv := fakeEmbeddingServer(t, &counter)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		EmbeddingModel: "test-model",
	})

	resp, err := p.Embed(context.Background(), NewEmbeddingRequest([]string{}))
	require.NoError(t, err)
	require.Empty(t, resp.Embeddings())
	require.Equal(t, int64(0), counter.Load(), "no HTTP request for empty input")
}

func TestOpenAIProvider_EmbedBatch(t *testing.T) {
	var counter atomic.Int64
	srv := fakeEmbeddingServer(t, &counter)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		EmbeddingModel: "test-model",
	})

	texts := []string{"a", "bb", "ccc"}
	resp, err := p.Embed(context.Background(), NewEmbeddingRequest(texts))
	require.NoError(t, err)

	embs := resp.Embeddings()
	require.Len(t, embs, 3)
	for i, vec := range embs {
		require.Len(t, vec, 3)
		assert.InDelta(t, float64(len(texts[i])), vec[2], 1e-6, "vectors keep request order")
	}
	assert.Equal(t, 12, resp.Usage().PromptTokens())
	assert.Equal(t, int64(1), counter.Load())
	assert.Equal(t, DefaultBatchSize, p.Capacity())
}

func TestOpenAIProvider_EmbedCancelledContext(t *testing.T) {
	var counter atomic.Int64
	srv := fakeEmbeddingServer(t, &counter)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Embed(ctx, NewEmbeddingRequest([]string{"text"}))
	require.Error(t, err)
	assert.Equal(t, int64(0), counter.Load())
}

// emptyResponseServer answers with an empty data array until failCount
// requests have been served.
func emptyResponseServer(t *testing.T, counter *atomic.Int64, failCount int64) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := counter.Add(1)

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		data := []map[string]any{}
		if n > failCount {
			for i := range body.Input {
				data = append(data, map[string]any{
					"object":    "embedding",
					"index":     i,
					"embedding": []float64{0.1, 0.2, 0.3},
				})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  body.Model,
			"usage":  map[string]int{"prompt_tokens": 0, "total_tokens": 0},
		})
	}))
}

func TestOpenAIProvider_EmbedEmptyResponseReturnsError(t *testing.T) {
	var counter atomic.Int64
	srv := emptyResponseServer(t, &counter, 999)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		EmbeddingModel: "test-model",
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
	})

	_, err := p.Embed(context.Background(), NewEmbeddingRequest([]string{"hello", "world"}))
	require.Error(t, err)
	require.ErrorIs(t, err, errEmbeddingCountMismatch)
	assert.Equal(t, int64(2), counter.Load())
}

func TestOpenAIProvider_EmbedEmptyResponseRetries(t *testing.T) {
	var counter atomic.Int64
	srv := emptyResponseServer(t, &counter, 2)
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		EmbeddingModel: "test-model",
		MaxRetries:     3,
		InitialDelay:   time.Millisecond,
	})

	resp, err := p.Embed(context.Background(), NewEmbeddingRequest([]string{"hello", "world"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings(), 2)
	require.Equal(t, int64(3), counter.Load(), "should have retried twice then succeeded")
}

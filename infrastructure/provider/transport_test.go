package provider

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(count *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Custom", "test-value")
		_, _ = w.Write(body)
	}))
}

func post(t *testing.T, rt http.RoundTripper, url, body string) (int, string, http.Header) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b), resp.Header
}

func TestCachingTransport_HitAfterMiss(t *testing.T) {
	var count atomic.Int32
	srv := echoServer(&count)
	defer srv.Close()

	transport := NewCachingTransport(t.TempDir(), srv.Client().Transport)

	for range 3 {
		status, body, header := post(t, transport, srv.URL+"/v1/embeddings", `{"input":"hello"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, `{"input":"hello"}`, body)
		assert.Equal(t, "test-value", header.Get("X-Custom"))
	}

	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, int64(2), transport.Hits())
	assert.Equal(t, int64(1), transport.Misses())
}

func TestCachingTransport_DifferentBodies(t *testing.T) {
	var count atomic.Int32
	srv := echoServer(&count)
	defer srv.Close()

	transport := NewCachingTransport(t.TempDir(), srv.Client().Transport)

	_, a, _ := post(t, transport, srv.URL+"/api", `{"input":"hello"}`)
	_, b, _ := post(t, transport, srv.URL+"/api", `{"input":"world"}`)

	assert.NotEqual(t, a, b)
	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_NonSuccessNotCached(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	transport := NewCachingTransport(t.TempDir(), srv.Client().Transport)
	for range 2 {
		status, _, _ := post(t, transport, srv.URL+"/api", "body")
		assert.Equal(t, http.StatusInternalServerError, status)
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestCachingTransport_CorruptEntryFallsThrough(t *testing.T) {
	var count atomic.Int32
	srv := echoServer(&count)
	defer srv.Close()

	dir := t.TempDir()
	transport := NewCachingTransport(dir, srv.Client().Transport)
	post(t, transport, srv.URL+"/api", "body")

	key := cacheKey(http.MethodPost, srv.URL+"/api", []byte("body"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), []byte("not json{{{"), 0o644))

	_, body, _ := post(t, transport, srv.URL+"/api", "body")
	assert.Equal(t, "body", body)
	assert.Equal(t, int32(2), count.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestCachingTransport_InnerError(t *testing.T) {
	transport := NewCachingTransport(t.TempDir(), &failingTransport{})

	req, _ := http.NewRequest(http.MethodPost, "http://localhost/api", strings.NewReader("body"))
	_, err := transport.RoundTrip(req)
	require.Error(t, err)
}

func TestCachingTransport_ChatCompletions(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `{"sql":"SELECT 1"}`},
			}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProviderFromConfig(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1",
		MaxRetries: 1,
		HTTPClient: &http.Client{Transport: NewCachingTransport(t.TempDir(), srv.Client().Transport)},
	})

	req := NewChatCompletionRequest([]Message{UserMessage("ticket")}).WithTemperature(0)
	for range 2 {
		resp, err := p.ChatCompletion(t.Context(), req)
		require.NoError(t, err)
		assert.Equal(t, `{"sql":"SELECT 1"}`, resp.Content())
	}
	assert.Equal(t, int32(1), calls.Load())
}

type failingTransport struct{}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrServerClosed
}

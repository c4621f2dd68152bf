package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

const localBatchMax = 16

// localRuntime is the process-wide inference session. The mutex guards both
// setup and inference.
var localRuntime struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	modelDir string
}

// LocalEmbedder embeds column values with a sentence-transformer model kept
// on disk, for deployments without an embedding endpoint.
type LocalEmbedder struct {
	modelRoot string
}

// NewLocalEmbedder creates an embedder that loads the first model directory
// under modelRoot containing a tokenizer.json.
func NewLocalEmbedder(modelRoot string) *LocalEmbedder {
	return &LocalEmbedder{modelRoot: modelRoot}
}

// Available reports whether a model exists under the model root.
func (e *LocalEmbedder) Available() bool {
	_, err := e.modelPath()
	return err == nil
}

// Capacity returns the maximum number of texts per Embed call.
func (e *LocalEmbedder) Capacity() int { return localBatchMax }

func (e *LocalEmbedder) modelPath() (string, error) {
	entries, err := os.ReadDir(e.modelRoot)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", e.modelRoot, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(e.modelRoot, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, "tokenizer.json")); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model with tokenizer.json under %s", e.modelRoot)
}

// load must be called with localRuntime.mu held.
func (e *LocalEmbedder) load() error {
	if localRuntime.pipeline != nil {
		return nil
	}

	path, err := e.modelPath()
	if err != nil {
		return err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: path,
		Name:      "value-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = session.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	localRuntime.session = session
	localRuntime.pipeline = pipeline
	localRuntime.modelDir = path
	return nil
}

// Embed generates embeddings for at most Capacity() texts.
func (e *LocalEmbedder) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0, 0)), nil
	}
	if len(texts) > localBatchMax {
		return EmbeddingResponse{}, fmt.Errorf("embed: %d texts exceeds capacity %d", len(texts), localBatchMax)
	}
	if err := ctx.Err(); err != nil {
		return EmbeddingResponse{}, err
	}

	localRuntime.mu.Lock()
	defer localRuntime.mu.Unlock()

	if err := e.load(); err != nil {
		return EmbeddingResponse{}, fmt.Errorf("load local model: %w", err)
	}

	result, err := localRuntime.pipeline.RunPipeline(texts)
	if err != nil {
		return EmbeddingResponse{}, fmt.Errorf("run embedding pipeline: %w", err)
	}

	embeddings := make([][]float64, len(result.Embeddings))
	for i, vec32 := range result.Embeddings {
		vec := make([]float64, len(vec32))
		for j, v := range vec32 {
			vec[j] = float64(v)
		}
		embeddings[i] = vec
	}

	return NewEmbeddingResponse(embeddings, NewUsage(0, 0, 0)), nil
}

// Close is a no-op; the session lives for the process.
func (e *LocalEmbedder) Close() error {
	return nil
}

var (
	_ Embedder = (*LocalEmbedder)(nil)
	_ Capacity = (*LocalEmbedder)(nil)
)

package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_EmbedWithModel(t *testing.T) {
	root := os.Getenv("LOCAL_MODEL_DIR")
	if root == "" {
		t.Skip("skipping: LOCAL_MODEL_DIR not set")
	}

	emb := NewLocalEmbedder(root)
	require.True(t, emb.Available())

	resp, err := emb.Embed(context.Background(), NewEmbeddingRequest([]string{"active", "churned"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeddings(), 2)
	require.NotEmpty(t, resp.Embeddings()[0])
}

func TestLocalEmbedder_EmbedEmpty(t *testing.T) {
	emb := NewLocalEmbedder(t.TempDir())

	resp, err := emb.Embed(context.Background(), NewEmbeddingRequest([]string{}))
	require.NoError(t, err)
	require.Empty(t, resp.Embeddings())
}

func TestLocalEmbedder_OverCapacity(t *testing.T) {
	emb := NewLocalEmbedder(t.TempDir())

	texts := make([]string, emb.Capacity()+1)
	_, err := emb.Embed(context.Background(), NewEmbeddingRequest(texts))
	require.ErrorContains(t, err, "exceeds capacity")
}

func TestLocalEmbedder_Available(t *testing.T) {
	root := t.TempDir()
	emb := NewLocalEmbedder(root)
	require.False(t, emb.Available())

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("readme"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "incomplete"), 0o755))
	require.False(t, emb.Available(), "files and directories without tokenizer.json are skipped")

	subdir := filepath.Join(root, "minilm")
	require.NoError(t, os.MkdirAll(subdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(subdir, "tokenizer.json"), []byte(`{}`), 0o644))

	got, err := emb.modelPath()
	require.NoError(t, err)
	require.Equal(t, subdir, got)
	require.True(t, emb.Available())
}

func TestLocalEmbedder_MissingRoot(t *testing.T) {
	emb := NewLocalEmbedder(filepath.Join(t.TempDir(), "absent"))
	require.False(t, emb.Available())
	require.NoError(t, emb.Close())
}

func TestLocalEmbedder_CancelledContext(t *testing.T) {
	emb := NewLocalEmbedder(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := emb.Embed(ctx, NewEmbeddingRequest([]string{"hello"}))
	require.Error(t, err)
}

package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewAnswer struct {
	SQL   string `json:"sql" description:"final query"`
	Notes string `json:"notes" description:"what changed"`
}

func TestResponseSchema_Decode(t *testing.T) {
	schema := MustResponseSchema("review", reviewAnswer{})
	assert.Equal(t, "review", schema.Name())
	assert.Contains(t, schema.JSON(), `"notes"`)

	tests := []struct {
		name    string
		content string
		want    reviewAnswer
		wantErr bool
	}{
		{
			name:    "plain object",
			content: `{"sql":"SELECT 1","notes":"none"}`,
			want:    reviewAnswer{SQL: "SELECT 1", Notes: "none"},
		},
		{
			name:    "fenced with reasoning",
			content: "<think>consider joins</think>\n```json\n{\"sql\":\"SELECT 2\",\"notes\":\"n\"}\n```",
			want:    reviewAnswer{SQL: "SELECT 2", Notes: "n"},
		},
		{
			name:    "surrounding prose",
			content: `Here you go: {"sql":"SELECT 3","notes":""} hope it helps`,
			want:    reviewAnswer{SQL: "SELECT 3"},
		},
		{
			name:    "missing required field",
			content: `{"sql":"SELECT 1"}`,
			wantErr: true,
		},
		{
			name:    "no object",
			content: "I cannot help with that",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got reviewAnswer
			err := schema.Decode(tt.content, &got)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrSchemaMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanThinkingTags(t *testing.T) {
	assert.Equal(t, "answer", CleanThinkingTags("<think>a</think>answer<think>b</think>"))
	assert.Equal(t, "kept", CleanThinkingTags("kept<think>unterminated"))
	assert.Equal(t, "plain", CleanThinkingTags("  plain "))
}

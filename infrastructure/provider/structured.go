package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ResponseSchema describes the JSON object a chat completion must return.
type ResponseSchema struct {
	name       string
	definition *jsonschema.Definition
}

// NewResponseSchema derives a schema from the Go type of sample. Struct
// fields use their json and description tags.
func NewResponseSchema(name string, sample any) (ResponseSchema, error) {
	def, err := jsonschema.GenerateSchemaForType(sample)
	if err != nil {
		return ResponseSchema{}, fmt.Errorf("generate schema %s: %w", name, err)
	}
	return ResponseSchema{name: name, definition: def}, nil
}

// MustResponseSchema is NewResponseSchema for package-level schemas.
func MustResponseSchema(name string, sample any) ResponseSchema {
	s, err := NewResponseSchema(name, sample)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s ResponseSchema) Name() string { return s.name }

// Definition returns the JSON schema definition.
func (s ResponseSchema) Definition() *jsonschema.Definition { return s.definition }

// JSON renders the schema document.
func (s ResponseSchema) JSON() string {
	if s.definition == nil {
		return "{}"
	}
	b, err := json.Marshal(s.definition)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Instructions is the prompt suffix used with providers that have no native
// structured output.
func (s ResponseSchema) Instructions() string {
	return "Respond with a single JSON object and nothing else. " +
		"It must validate against this JSON schema:\n" + s.JSON()
}

// Decode validates content against the schema and unmarshals it into v.
// Reasoning blocks and markdown code fences around the object are ignored.
func (s ResponseSchema) Decode(content string, v any) error {
	payload := ExtractJSON(content)
	if payload == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrSchemaMismatch)
	}
	if s.definition == nil {
		if err := json.Unmarshal([]byte(payload), v); err != nil {
			return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		return nil
	}
	if err := jsonschema.VerifySchemaAndUnmarshal(*s.definition, []byte(payload), v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// ExtractJSON returns the outermost JSON object in model output.
func ExtractJSON(content string) string {
	text := strings.TrimSpace(CleanThinkingTags(content))
	text = stripCodeFence(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// CleanThinkingTags removes any <think>...</think> blocks from model output.
func CleanThinkingTags(text string) string {
	result := text
	for {
		start := strings.Index(result, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "</think>")
		if end == -1 {
			result = result[:start]
			break
		}
		result = result[:start] + result[start+end+len("</think>"):]
	}
	return strings.TrimSpace(result)
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

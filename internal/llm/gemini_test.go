package llm

import (
	"context"
	"encoding/json"
	"testing"

	"hooka/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "gemini-3-flash-preview", nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig(Request{
		SystemInstruction: "be bold",
		ResponseSchema:    json.RawMessage(`{"type":"array","items":{"type":"object"}}`),
		UseSearch:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.SystemInstruction)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	schema, ok := cfg.ResponseJsonSchema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "array", schema["type"])

	plain, err := buildConfig(Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Empty(t, plain.ResponseMIMEType)
	assert.Nil(t, plain.Tools)

	_, err = buildConfig(Request{ResponseSchema: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestGroundingSources(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
					{Web: &genai.GroundingChunkWeb{URI: "https://b.example"}},
					{},
				},
			},
		}},
	}
	assert.Equal(t, []model.Source{{Title: "A", URI: "https://a.example"}}, groundingSources(resp))
	assert.Nil(t, groundingSources(&genai.GenerateContentResponse{}))
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hooka/internal/metrics"
	"hooka/internal/model"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers without candidates.
var ErrEmptyResponse = errors.New("gemini returned no candidates")

// Gemini generates content with Google's Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, modelName string, m *metrics.Metrics, logger zerolog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   modelName,
		metrics: m,
		logger:  logger.With().Str("service", "Gemini").Logger(),
	}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	cfg, err := buildConfig(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	g.observe(req.Operation, start, err)
	if err != nil {
		g.logger.Error().Err(err).Str("operation", req.Operation).Msg("GenerateContent failed")
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	out := &Response{Text: resp.Text(), Sources: groundingSources(resp)}
	if resp.UsageMetadata != nil {
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	g.logger.Debug().
		Str("operation", req.Operation).
		Int("tokens", out.TotalTokens).
		Int("sources", len(out.Sources)).
		Dur("took", time.Since(start)).
		Msg("Gemini response received")
	return out, nil
}

func buildConfig(req Request) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.JSONOutput || len(req.ResponseSchema) > 0 {
		cfg.ResponseMIMEType = "application/json"
	}
	if len(req.ResponseSchema) > 0 {
		var schema map[string]any
		if err := json.Unmarshal(req.ResponseSchema, &schema); err != nil {
			return nil, fmt.Errorf("decode response schema: %w", err)
		}
		cfg.ResponseJsonSchema = schema
	}
	if req.UseSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg, nil
}

func groundingSources(resp *genai.GenerateContentResponse) []model.Source {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []model.Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		out = append(out, model.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

func (g *Gemini) observe(operation string, start time.Time, err error) {
	if g.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.AIRequests.WithLabelValues(operation, status).Inc()
	g.metrics.AILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

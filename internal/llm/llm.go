// Package llm adapts the Gemini API to the small request/response contract
// used by the content services.
package llm

import (
	"context"
	"encoding/json"

	"hooka/internal/model"
)

// Request is a single prompt to the model.
type Request struct {
	// Operation labels metrics and logs, e.g. "research".
	Operation         string
	Prompt            string
	SystemInstruction string
	// JSONOutput asks the model for an application/json response.
	JSONOutput bool
	// ResponseSchema is a JSON Schema document constraining the output.
	ResponseSchema json.RawMessage
	// UseSearch enables the model's web search tool.
	UseSearch bool
}

// Response is the model's answer.
type Response struct {
	Text        string
	TotalTokens int
	// Sources are web pages the answer was grounded on, if any.
	Sources []model.Source
}

// Generator produces content for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

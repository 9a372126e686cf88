// Package llm provides LLM client implementations.
package llm

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentwerkstatt/werkstatt/internal/conversation"
)

// Tool is a tool definition as presented to the model.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	InputSchema *jsonschema.Schema `json:"input_schema"`
}

// Response is the provider response for one request.
type Response struct {
	Model      string
	Content    []conversation.ContentBlock
	StopReason string

	InputTokens  int
	OutputTokens int
}

// Client is the interface all LLM providers implement. Chat never
// assumes success: transport failures, non-2xx statuses, and malformed
// bodies all come back as errors for the caller to surface.
type Client interface {
	// Chat sends the transcript and returns the assistant's content blocks.
	Chat(ctx context.Context, model, system string, turns []conversation.Turn, tools []Tool) (*Response, error)

	// Ping checks if the provider is reachable with valid credentials.
	Ping(ctx context.Context) error
}

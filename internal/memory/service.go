// Package memory provides the long-term memory boundary and the local
// exchange archive. The remote memory service enriches requests with
// retrieved context and stores completed exchanges; its failures are
// logged by callers and never block the core exchange.
package memory

import "context"

// Service is the long-term memory interface. A no-op implementation is
// substitutable with zero behavior change.
type Service interface {
	// Enabled reports whether the service actually stores anything.
	Enabled() bool

	// Retrieve returns memory context relevant to the user input,
	// formatted for prompt injection. An empty string means nothing
	// relevant was found.
	Retrieve(ctx context.Context, userInput, userID string) (string, error)

	// Store records a completed exchange for future retrieval.
	Store(ctx context.Context, userInput, assistantResponse, userID string) error
}

// Noop is the disabled implementation.
type Noop struct{}

// NewNoop returns a Service that remembers nothing.
func NewNoop() *Noop { return &Noop{} }

func (Noop) Enabled() bool { return false }

func (Noop) Retrieve(context.Context, string, string) (string, error) { return "", nil }

func (Noop) Store(context.Context, string, string, string) error { return nil }

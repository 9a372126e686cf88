// Package trace provides the observability boundary: spans around
// requests, LLM calls, and tool executions, exported to a Langfuse
// server. A no-op implementation is substitutable with zero behavior
// change, so callers never branch on whether tracing is enabled.
package trace

import "time"

// Span is a handle to one observed operation. Spans from the no-op
// service are nil; every Service method tolerates nil spans.
type Span struct {
	ID       string
	TraceID  string
	ParentID string
	Name     string
	Started  time.Time

	input any
}

// Service records spans. Implementations must never let an export
// failure propagate to the caller; observability is strictly best
// effort.
type Service interface {
	// Enabled reports whether spans are actually exported.
	Enabled() bool

	// StartTrace opens a new root span for one user request.
	StartTrace(name string, input any) *Span

	// StartSpan opens a child span under parent. A nil parent starts
	// a detached span.
	StartSpan(parent *Span, name string, input any) *Span

	// EndSpan closes the span with its output.
	EndSpan(span *Span, output any)

	// Flush sends all pending spans to the backend and blocks until
	// the export attempt completes.
	Flush()
}

// Noop is the disabled implementation.
type Noop struct{}

// NewNoop returns a Service that records nothing.
func NewNoop() *Noop { return &Noop{} }

func (Noop) Enabled() bool                          { return false }
func (Noop) StartTrace(string, any) *Span           { return nil }
func (Noop) StartSpan(*Span, string, any) *Span     { return nil }
func (Noop) EndSpan(*Span, any)                     {}
func (Noop) Flush()                                 {}

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentwerkstatt/werkstatt/internal/conversation"
	"github.com/agentwerkstatt/werkstatt/internal/trace"
)

// placeholderContent fills the gap when a tool-call request ends up
// with no result. The Messages API rejects any transcript where a
// tool_use block lacks its tool_result, so a placeholder is mandatory.
const placeholderContent = "tool execution failed to complete, no result available"

// Outcome is the reconciler's verdict on one assistant turn.
type Outcome struct {
	// Text is the concatenation of the turn's text blocks in order.
	Text string

	// Requests are the tool-call request blocks, in turn order.
	Requests []conversation.ContentBlock

	// Results holds exactly one result per request, in request order,
	// with placeholders synthesized for any the invoker never produced.
	Results []ToolResult

	// ResultTurn is the user-role turn carrying one tool_result block
	// per request. Only meaningful when HasToolCalls is true.
	ResultTurn conversation.Turn

	// HasToolCalls reports whether a follow-up LLM call is required.
	HasToolCalls bool

	// AllFailed reports that every result is error-flagged.
	AllFailed bool
}

// Reconciler drives an assistant turn's tool calls to completion and
// guarantees the follow-up turn it builds is structurally valid:
// every request paired with exactly one result, in order, regardless
// of how individual executions fail.
type Reconciler struct {
	invoker toolInvoker
	logger  *slog.Logger
}

// NewReconciler creates a reconciler over the given invoker.
func NewReconciler(invoker toolInvoker, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{invoker: invoker, logger: logger}
}

// Reconcile scans one assistant turn, executes any tool-call requests
// sequentially in request order, repairs the result set, and builds
// the tool_result turn for the follow-up call.
func (r *Reconciler) Reconcile(ctx context.Context, parent *trace.Span, assistant conversation.Turn) *Outcome {
	out := &Outcome{
		Text:     assistant.Text(),
		Requests: assistant.ToolUses(),
	}

	if len(out.Requests) == 0 {
		return out
	}
	out.HasToolCalls = true

	results := make([]ToolResult, 0, len(out.Requests))
	for _, req := range out.Requests {
		results = append(results, r.invoker.Invoke(ctx, parent, req))
	}

	out.Results = r.repairResults(out.Requests, results)

	out.AllFailed = true
	for _, res := range out.Results {
		if !res.IsError {
			out.AllFailed = false
			break
		}
	}
	if out.AllFailed {
		r.logger.Warn("all tool executions failed", "count", len(out.Results))
	}

	blocks := make([]conversation.ContentBlock, 0, len(out.Results))
	for _, res := range out.Results {
		blocks = append(blocks, conversation.ToolResultBlock(res.ToolUseID, res.Content, res.IsError))
	}
	out.ResultTurn = conversation.Turn{Role: conversation.RoleUser, Blocks: blocks}

	return out
}

// repairResults reconciles the produced results against the expected
// requests. Missing results get a synthesized error placeholder;
// duplicate and orphaned results are dropped with a warning. The
// returned slice holds exactly one result per request, request order.
func (r *Reconciler) repairResults(requests []conversation.ContentBlock, results []ToolResult) []ToolResult {
	byID := make(map[string]ToolResult, len(results))
	expected := make(map[string]bool, len(requests))
	for _, req := range requests {
		expected[req.ID] = true
	}

	for _, res := range results {
		if !expected[res.ToolUseID] {
			r.logger.Warn("dropping orphaned tool result",
				"tool_use_id", res.ToolUseID,
				"tool", res.ToolName,
			)
			continue
		}
		if _, dup := byID[res.ToolUseID]; dup {
			r.logger.Warn("dropping duplicate tool result",
				"tool_use_id", res.ToolUseID,
				"tool", res.ToolName,
			)
			continue
		}
		byID[res.ToolUseID] = res
	}

	repaired := make([]ToolResult, 0, len(requests))
	for _, req := range requests {
		res, ok := byID[req.ID]
		if !ok {
			r.logger.Warn("synthesizing placeholder for missing tool result",
				"tool_use_id", req.ID,
				"tool", req.Name,
			)
			res = ToolResult{
				ToolUseID: req.ID,
				ToolName:  req.Name,
				Content:   placeholderContent,
				IsError:   true,
			}
		}
		repaired = append(repaired, res)
	}
	return repaired
}

// ComposeFailureSummary builds the user-facing explanation when every
// tool in a turn failed. Partial assistant text from the same turn is
// appended so nothing the model already said is lost.
func ComposeFailureSummary(results []ToolResult, partialText string) string {
	var sb strings.Builder
	sb.WriteString("I tried to use my tools to answer, but they all failed:\n")
	for _, res := range results {
		fmt.Fprintf(&sb, "- %s: %s\n", res.ToolName, res.Content)
	}
	if text := strings.TrimSpace(partialText); text != "" {
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

package delegate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentwerkstatt/werkstatt/internal/prompts"
)

// Tool exposes the executor as a regular agent tool. Worker failures
// come back as result text rather than Go errors so the calling model
// can decide whether to retry.
type Tool struct {
	exec *Executor
}

// NewTool wraps an executor.
func NewTool(exec *Executor) *Tool {
	return &Tool{exec: exec}
}

func (t *Tool) Name() string { return delegateToolName }

func (t *Tool) Description() string { return prompts.DelegateToolDescription }

func (t *Tool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"task": {
				Type:        "string",
				Description: "Plain English description of what to accomplish.",
			},
			"guidance": {
				Type:        "string",
				Description: "Optional hints to steer execution (what to focus on, output format preferences).",
			},
		},
		Required: []string{"task"},
	}
}

// Execute runs the delegated task and formats the outcome with explicit
// success/failure headers so the calling model can distinguish them.
func (t *Tool) Execute(ctx context.Context, input map[string]any) (any, error) {
	task, _ := input["task"].(string)
	if task == "" {
		return "Error: task is required", nil
	}
	guidance, _ := input["guidance"].(string)

	result, err := t.exec.Execute(ctx, task, guidance)
	if err != nil {
		return fmt.Sprintf("[Delegate error] %s", err.Error()), nil
	}

	summary := formatExecSummary(result)

	if !result.Exhausted {
		if result.Content == "" {
			return fmt.Sprintf("[Delegate FAILED: reason=no_output, iter=%d]\n\nDelegate completed without producing results.\n\n%s",
				result.Iterations, summary), nil
		}
		header := fmt.Sprintf("[Delegate SUCCEEDED: iter=%d, output_tokens=%d]",
			result.Iterations, result.OutputTokens)
		return header + "\n\n" + result.Content + "\n\n" + summary, nil
	}

	header := fmt.Sprintf("[Delegate FAILED: reason=%s, iter=%d, output_tokens=%d]",
		result.ExhaustReason, result.Iterations, result.OutputTokens)

	var out strings.Builder
	out.WriteString(header)
	out.WriteString("\n\n")
	if result.Content != "" {
		out.WriteString(result.Content)
		out.WriteString("\n\n")
	}
	out.WriteString("[Exhaustion note: ")
	if result.ExhaustReason == ExhaustWallClock {
		out.WriteString("The delegate exceeded its wall clock time limit before completing the task.")
	} else {
		out.WriteString("The delegate used all available iterations before completing the task.")
	}
	out.WriteString(" If retrying, provide more specific guidance to narrow the scope.]\n\n")
	out.WriteString(summary)
	return out.String(), nil
}

// formatExecSummary produces a compact summary block telling the
// calling model which tools ran and whether they succeeded.
func formatExecSummary(r *Result) string {
	var sb strings.Builder
	sb.WriteString("--- execution summary ---\n")
	sb.WriteString(fmt.Sprintf("iterations: %d\n", r.Iterations))
	sb.WriteString(fmt.Sprintf("duration: %s\n", formatDuration(r.Duration)))

	if len(r.ToolCalls) == 0 {
		sb.WriteString("tool_calls: (none)\n")
		sb.WriteString("errors: 0\n")
	} else {
		var errs int
		parts := make([]string, len(r.ToolCalls))
		for i, tc := range r.ToolCalls {
			tag := "ok"
			if !tc.Success {
				tag = "err"
				errs++
			}
			parts[i] = fmt.Sprintf("%s(%s)", tc.Name, tag)
		}
		sb.WriteString(fmt.Sprintf("tool_calls: %s\n", strings.Join(parts, ", ")))
		sb.WriteString(fmt.Sprintf("errors: %d\n", errs))
	}

	return sb.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

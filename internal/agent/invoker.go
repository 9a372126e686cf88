// Package agent implements the request orchestration loop: tool
// invocation, turn reconciliation, and transcript management around
// the LLM client.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonrepair"

	"github.com/agentwerkstatt/werkstatt/internal/conversation"
	"github.com/agentwerkstatt/werkstatt/internal/tools"
	"github.com/agentwerkstatt/werkstatt/internal/trace"
)

// ToolResult is the normalized outcome of one tool invocation. Exactly
// one exists per tool-call request; it lives only until the reconciler
// folds it into a tool_result turn.
type ToolResult struct {
	ToolUseID string
	ToolName  string
	Content   string
	IsError   bool
}

// toolInvoker executes one tool-call request. Implementations must
// return a result and never panic past their boundary.
type toolInvoker interface {
	Invoke(ctx context.Context, parent *trace.Span, req conversation.ContentBlock) ToolResult
}

// Invoker executes tool-call requests against a registry. It is the
// single chokepoint that converts every failure mode — unknown tool,
// malformed input, execution panic or error, unserializable payload —
// into a tagged ToolResult, so nothing upstream handles tool failures.
type Invoker struct {
	registry *tools.Registry
	tracer   trace.Service
	logger   *slog.Logger
}

// NewInvoker creates a tool invoker.
func NewInvoker(registry *tools.Registry, tracer trace.Service, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = trace.NewNoop()
	}
	return &Invoker{
		registry: registry,
		tracer:   tracer,
		logger:   logger,
	}
}

// Invoke executes one tool-call request and returns exactly one
// result keyed to the request's ID. It never returns an error and
// never panics: all failures degrade to an error-flagged result.
func (v *Invoker) Invoke(ctx context.Context, parent *trace.Span, req conversation.ContentBlock) ToolResult {
	span := v.tracer.StartSpan(parent, "tool:"+req.Name, req.Input)

	result := v.invoke(ctx, req)

	v.tracer.EndSpan(span, map[string]any{
		"content":  result.Content,
		"is_error": result.IsError,
	})

	if result.IsError {
		v.logger.Error("tool execution failed",
			"tool", req.Name,
			"tool_use_id", req.ID,
			"error", result.Content,
		)
	} else {
		v.logger.Debug("tool execution complete",
			"tool", req.Name,
			"tool_use_id", req.ID,
			"result_len", len(result.Content),
		)
	}
	return result
}

func (v *Invoker) invoke(ctx context.Context, req conversation.ContentBlock) (result ToolResult) {
	result = ToolResult{ToolUseID: req.ID, ToolName: req.Name}

	// A panicking tool must degrade to an error result, not abort the
	// turn. This is the only recover in the request path.
	defer func() {
		if r := recover(); r != nil {
			result.Content = fmt.Sprintf("Error in tool '%s': panic: %v", req.Name, r)
			result.IsError = true
		}
	}()

	tool := v.registry.Resolve(req.Name)
	if tool == nil {
		err := &tools.ErrToolUnavailable{ToolName: req.Name}
		result.Content = err.Error()
		result.IsError = true
		return result
	}

	input, err := coerceInput(req.Input)
	if err != nil {
		result.Content = fmt.Sprintf("Error in tool '%s': %v", req.Name, err)
		result.IsError = true
		return result
	}

	if err := validateInput(tool, input); err != nil {
		result.Content = fmt.Sprintf("Error in tool '%s': %v", req.Name, err)
		result.IsError = true
		return result
	}

	payload, err := tool.Execute(ctx, input)
	if err != nil {
		result.Content = fmt.Sprintf("Error in tool '%s': %v", req.Name, err)
		result.IsError = true
		return result
	}

	content, err := serializePayload(payload)
	if err != nil {
		result.Content = fmt.Sprintf("Error in tool '%s': serialize result: %v", req.Name, err)
		result.IsError = true
		return result
	}

	result.Content = content
	return result
}

// coerceInput normalizes the wire input into the key/value map tools
// expect. Providers occasionally deliver the input as a JSON string
// instead of an object; a repair-and-parse pass recovers those before
// the request is rejected.
func coerceInput(input any) (map[string]any, error) {
	switch in := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return in, nil
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			fixed, repairErr := jsonrepair.JSONRepair(in)
			if repairErr != nil {
				return nil, fmt.Errorf("input must be an object, got string")
			}
			if err := json.Unmarshal([]byte(fixed), &m); err != nil {
				return nil, fmt.Errorf("input must be an object, got string")
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("input must be an object, got %T", input)
	}
}

// validateInput checks the input against the tool's declared schema.
// A schema that fails to resolve disables validation for that call
// rather than failing the tool.
func validateInput(tool tools.Tool, input map[string]any) error {
	schema := tool.Schema()
	if schema == nil {
		return nil
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil
	}
	if err := resolved.Validate(input); err != nil {
		return fmt.Errorf("invalid input: %v", err)
	}
	return nil
}

// serializePayload converts a tool's success payload to the string
// form carried in a tool_result block. Structured values become
// canonical JSON; scalars are stringified directly.
func serializePayload(payload any) (string, error) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case fmt.Stringer:
		return p.String(), nil
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", p), nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// Package delegate implements the delegate meta-tool: self-contained
// sub-tasks run in a short-lived worker loop with minimal context and a
// tool registry that excludes the delegate tool itself, so workers can
// never recurse.
package delegate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentwerkstatt/werkstatt/internal/agent"
	"github.com/agentwerkstatt/werkstatt/internal/conversation"
	"github.com/agentwerkstatt/werkstatt/internal/llm"
	"github.com/agentwerkstatt/werkstatt/internal/prompts"
	"github.com/agentwerkstatt/werkstatt/internal/tools"
	"github.com/agentwerkstatt/werkstatt/internal/trace"
)

// delegateToolName is excluded from worker registries to prevent recursion.
const delegateToolName = "delegate"

// Exhaustion reason constants.
const (
	ExhaustMaxIterations = "max_iterations"
	ExhaustWallClock     = "wall_clock"
)

const (
	defaultMaxIter     = 8
	defaultMaxDuration = 120 * time.Second
)

// ToolCallSummary records one tool invocation for the execution summary.
type ToolCallSummary struct {
	Name    string
	Success bool
}

// Result is the outcome of a delegated task execution.
type Result struct {
	Content       string
	Model         string
	Iterations    int
	InputTokens   int
	OutputTokens  int
	Exhausted     bool
	ExhaustReason string
	ToolCalls     []ToolCallSummary
	Duration      time.Duration
}

// Executor runs delegated tasks using a lightweight iteration loop.
type Executor struct {
	logger     *slog.Logger
	llm        llm.Client
	model      string
	registry   *tools.Registry
	reconciler *agent.Reconciler
	tracer     trace.Service

	maxIter     int
	maxDuration time.Duration
}

// NewExecutor creates a delegate executor. The worker registry is a
// copy of parentReg without the delegate tool.
func NewExecutor(logger *slog.Logger, llmClient llm.Client, model string, parentReg *tools.Registry, tracer trace.Service) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = trace.NewNoop()
	}
	reg := parentReg.FilteredCopyExcluding([]string{delegateToolName})
	return &Executor{
		logger:      logger,
		llm:         llmClient,
		model:       model,
		registry:    reg,
		reconciler:  agent.NewReconciler(agent.NewInvoker(reg, tracer, logger), logger),
		tracer:      tracer,
		maxIter:     defaultMaxIter,
		maxDuration: defaultMaxDuration,
	}
}

// SetBudget overrides the iteration and wall clock limits. Zero values
// keep the defaults.
func (e *Executor) SetBudget(maxIter int, maxDuration time.Duration) {
	if maxIter > 0 {
		e.maxIter = maxIter
	}
	if maxDuration > 0 {
		e.maxDuration = maxDuration
	}
}

// Execute runs a delegated task to completion or budget exhaustion.
func (e *Executor) Execute(ctx context.Context, task, guidance string) (*Result, error) {
	if task == "" {
		return nil, fmt.Errorf("task is required")
	}

	// Unique delegate ID for log correlation.
	delegateID, _ := uuid.NewV7()
	did := delegateID.String()

	var userMsg strings.Builder
	userMsg.WriteString(task)
	if guidance != "" {
		userMsg.WriteString("\n\nGuidance: ")
		userMsg.WriteString(guidance)
	}

	turns := []conversation.Turn{conversation.UserText(userMsg.String())}
	toolDefs := e.registry.Definitions()

	e.logger.Info("delegate started",
		"delegate_id", did,
		"task", truncate(task, 200),
		"guidance", truncate(guidance, 200),
		"tools_available", len(toolDefs),
	)

	span := e.tracer.StartSpan(nil, "delegate", map[string]any{"task": task})

	startTime := time.Now()
	var totalInput, totalOutput int
	var calls []ToolCallSummary

	for i := range e.maxIter {
		if err := ctx.Err(); err != nil {
			e.tracer.EndSpan(span, map[string]any{"error": err.Error()})
			return nil, fmt.Errorf("delegate cancelled: %w", err)
		}

		if time.Since(startTime) > e.maxDuration {
			e.logger.Warn("delegate wall clock exceeded",
				"delegate_id", did,
				"elapsed", time.Since(startTime).Round(time.Millisecond),
				"max_duration", e.maxDuration,
			)
			return e.forceTextResponse(ctx, span, did, turns, &Result{
				Model:         e.model,
				Iterations:    i,
				InputTokens:   totalInput,
				OutputTokens:  totalOutput,
				Exhausted:     true,
				ExhaustReason: ExhaustWallClock,
				ToolCalls:     calls,
				Duration:      time.Since(startTime),
			})
		}

		iterStart := time.Now()

		resp, err := e.llm.Chat(ctx, e.model, prompts.DelegateSystemPrompt, turns, toolDefs)
		if err != nil {
			e.tracer.EndSpan(span, map[string]any{"error": err.Error()})
			return nil, fmt.Errorf("delegate llm call failed (iter %d): %w", i, err)
		}

		totalInput += resp.InputTokens
		totalOutput += resp.OutputTokens

		assistant := conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Content}
		outcome := e.reconciler.Reconcile(ctx, span, assistant)

		e.logger.Info("delegate iteration",
			"delegate_id", did,
			"iter", i,
			"tool_calls", len(outcome.Requests),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"elapsed", time.Since(iterStart).Round(time.Millisecond),
		)

		if !outcome.HasToolCalls {
			result := &Result{
				Content:      outcome.Text,
				Model:        e.model,
				Iterations:   i + 1,
				InputTokens:  totalInput,
				OutputTokens: totalOutput,
				ToolCalls:    calls,
				Duration:     time.Since(startTime),
			}
			e.logComplete(did, result)
			e.tracer.EndSpan(span, outcome.Text)
			return result, nil
		}

		for _, res := range outcome.Results {
			calls = append(calls, ToolCallSummary{Name: res.ToolName, Success: !res.IsError})
		}
		turns = append(turns, assistant, outcome.ResultTurn)
	}

	e.logger.Warn("delegate max iterations reached",
		"delegate_id", did,
		"max_iter", e.maxIter,
	)
	return e.forceTextResponse(ctx, span, did, turns, &Result{
		Model:         e.model,
		Iterations:    e.maxIter,
		InputTokens:   totalInput,
		OutputTokens:  totalOutput,
		Exhausted:     true,
		ExhaustReason: ExhaustMaxIterations,
		ToolCalls:     calls,
		Duration:      time.Since(startTime),
	})
}

// forceTextResponse makes a final call with no tools so an exhausted
// worker still reports what it found.
func (e *Executor) forceTextResponse(ctx context.Context, span *trace.Span, did string, turns []conversation.Turn, partial *Result) (*Result, error) {
	resp, err := e.llm.Chat(ctx, e.model, prompts.DelegateSystemPrompt, turns, nil)
	if err != nil {
		partial.Content = "Delegate was unable to complete the task within its budget."
		e.logComplete(did, partial)
		e.tracer.EndSpan(span, map[string]any{"error": err.Error()})
		return partial, nil
	}

	partial.InputTokens += resp.InputTokens
	partial.OutputTokens += resp.OutputTokens
	final := conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Content}
	partial.Content = final.Text()
	e.logComplete(did, partial)
	e.tracer.EndSpan(span, partial.Content)
	return partial, nil
}

func (e *Executor) logComplete(did string, r *Result) {
	e.logger.Info("delegate completed",
		"delegate_id", did,
		"model", r.Model,
		"iterations", r.Iterations,
		"input_tokens", r.InputTokens,
		"output_tokens", r.OutputTokens,
		"exhausted", r.Exhausted,
		"exhaust_reason", r.ExhaustReason,
		"duration", r.Duration.Round(time.Millisecond),
	)
}

// truncate shortens a string for log fields.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentwerkstatt/werkstatt/internal/conversation"
	"github.com/agentwerkstatt/werkstatt/internal/llm"
	"github.com/agentwerkstatt/werkstatt/internal/memory"
	"github.com/agentwerkstatt/werkstatt/internal/prompts"
	"github.com/agentwerkstatt/werkstatt/internal/tools"
	"github.com/agentwerkstatt/werkstatt/internal/trace"
)

// Agent wires memory enrichment, the LLM client, turn reconciliation,
// transcript commits, and observability into one call per user message.
//
// Errors never cross ProcessRequest as errors: every failure mode comes
// back as user-visible text, and the transcript is only mutated once an
// exchange has fully resolved.
type Agent struct {
	logger     *slog.Logger
	llm        llm.Client
	model      string
	registry   *tools.Registry
	reconciler *Reconciler
	history    *conversation.History
	memory     memory.Service
	tracer     trace.Service

	personaName  string
	systemPrompt string
	archive      *memory.ArchiveStore
	userID       string
}

// NewAgent creates the orchestrator. Memory and tracing accept no-op
// implementations; pass those rather than nil to disable the features.
func NewAgent(logger *slog.Logger, client llm.Client, model string, registry *tools.Registry, mem memory.Service, tracer trace.Service) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if mem == nil {
		mem = memory.NewNoop()
	}
	if tracer == nil {
		tracer = trace.NewNoop()
	}
	invoker := NewInvoker(registry, tracer, logger)
	return &Agent{
		logger:     logger,
		llm:        client,
		model:      model,
		registry:   registry,
		reconciler: NewReconciler(invoker, logger),
		history:    conversation.NewHistory(),
		memory:     mem,
		tracer:     tracer,
		userID:     "default_user",
	}
}

// SetPersona configures the active persona name (prefixed to replies)
// and its system prompt.
func (a *Agent) SetPersona(name, systemPrompt string) {
	a.personaName = name
	a.systemPrompt = systemPrompt
}

// SetArchive configures the local exchange archive. When set, every
// committed exchange is recorded for introspection.
func (a *Agent) SetArchive(store *memory.ArchiveStore) {
	a.archive = store
}

// SetUserID configures the memory-service user ID.
func (a *Agent) SetUserID(id string) {
	if id != "" {
		a.userID = id
	}
}

// History returns the transcript, for status and tests.
func (a *Agent) History() *conversation.History {
	return a.history
}

// ClearHistory resets the transcript. Idempotent.
func (a *Agent) ClearHistory() {
	a.history.Clear()
}

// ProcessRequest runs one full exchange for a user message and returns
// the final reply text. Errors are returned as text, never raised.
func (a *Agent) ProcessRequest(ctx context.Context, userInput string) (reply string) {
	// Nothing may escape the public boundary. An unexpected panic
	// leaves History untouched so future turns keep a clean context.
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("critical error processing request", "panic", r)
			reply = prompts.CriticalErrorFallback
		}
	}()
	defer a.tracer.Flush()

	rootSpan := a.tracer.StartTrace("agent-request", userInput)

	enhanced := a.enhanceWithMemory(ctx, userInput)

	turns := append(a.history.Snapshot(), conversation.UserText(enhanced))

	resp, err := a.chat(ctx, rootSpan, "llm-initial", turns)
	if err != nil {
		a.tracer.EndSpan(rootSpan, map[string]any{"error": err.Error()})
		return fmt.Sprintf("Error communicating with the model: %v", err)
	}

	assistant := conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Content}
	outcome := a.reconciler.Reconcile(ctx, rootSpan, assistant)

	var final string
	var committed []conversation.Turn

	switch {
	case !outcome.HasToolCalls:
		final = outcome.Text
		if strings.TrimSpace(final) == "" {
			final = prompts.EmptyResponseFallback
			assistant = conversation.AssistantText(final)
		}
		committed = []conversation.Turn{conversation.UserText(userInput), assistant}

	case outcome.AllFailed:
		// Protocol validity is independent of whether tools succeeded:
		// the result turn is committed so the transcript stays paired,
		// and the user gets an explanation instead of a bare error.
		final = ComposeFailureSummary(outcome.Results, outcome.Text)
		committed = []conversation.Turn{
			conversation.UserText(userInput),
			assistant,
			outcome.ResultTurn,
			conversation.AssistantText(final),
		}

	default:
		followUp, resultTurn, err := a.followUp(ctx, rootSpan, turns, assistant, outcome.ResultTurn)
		if err != nil {
			// The exchange is not committed: a half-recorded tool
			// round would corrupt every future turn.
			a.tracer.EndSpan(rootSpan, map[string]any{"error": err.Error()})
			return fmt.Sprintf("Error getting final response: %v", err)
		}
		final = followUp.Text()
		committed = []conversation.Turn{
			conversation.UserText(userInput),
			assistant,
			resultTurn,
			followUp,
		}
	}

	a.history.AppendExchange(committed...)

	withPersona := prompts.PersonaPrefix(a.personaName, final)
	a.finalize(ctx, userInput, withPersona, outcome)
	a.tracer.EndSpan(rootSpan, withPersona)

	return withPersona
}

// followUp sends the reconciled transcript back to the model for the
// final answer. If the model returns no text, one nudge is appended to
// the result turn and the call is retried; a still-empty answer falls
// back to a canned reply rather than an empty assistant turn.
func (a *Agent) followUp(ctx context.Context, rootSpan *trace.Span, turns []conversation.Turn, assistant, resultTurn conversation.Turn) (conversation.Turn, conversation.Turn, error) {
	followTurns := append(append([]conversation.Turn{}, turns...), assistant, resultTurn)

	resp, err := a.chat(ctx, rootSpan, "llm-followup", followTurns)
	if err != nil {
		return conversation.Turn{}, resultTurn, err
	}

	followUp := conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Content}
	if strings.TrimSpace(followUp.Text()) != "" {
		return followUp, resultTurn, nil
	}

	a.logger.Warn("empty response after tool execution, nudging")

	// The nudge rides inside the result turn as an extra text block,
	// preserving role alternation.
	nudged := resultTurn
	nudged.Blocks = append(append([]conversation.ContentBlock{}, resultTurn.Blocks...),
		conversation.TextBlock(prompts.EmptyResponseNudge))
	followTurns[len(followTurns)-1] = nudged

	resp, err = a.chat(ctx, rootSpan, "llm-nudge", followTurns)
	if err != nil {
		return conversation.Turn{}, nudged, err
	}

	followUp = conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Content}
	if strings.TrimSpace(followUp.Text()) == "" {
		followUp = conversation.AssistantText(prompts.EmptyResponseFallback)
	}
	return followUp, nudged, nil
}

// chat makes one LLM call wrapped in a span.
func (a *Agent) chat(ctx context.Context, parent *trace.Span, name string, turns []conversation.Turn) (*llm.Response, error) {
	span := a.tracer.StartSpan(parent, name, map[string]any{
		"model": a.model,
		"turns": len(turns),
	})

	resp, err := a.llm.Chat(ctx, a.model, a.systemPrompt, turns, a.registry.Definitions())
	if err != nil {
		a.logger.Error("llm call failed", "call", name, "error", err)
		a.tracer.EndSpan(span, map[string]any{"error": err.Error()})
		return nil, err
	}

	a.tracer.EndSpan(span, map[string]any{
		"stop_reason":   resp.StopReason,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
	})
	return resp, nil
}

// enhanceWithMemory prefixes the input with retrieved memory context.
// Memory failures degrade to the unmodified input.
func (a *Agent) enhanceWithMemory(ctx context.Context, userInput string) string {
	if !a.memory.Enabled() {
		return userInput
	}
	memoryContext, err := a.memory.Retrieve(ctx, userInput, a.userID)
	if err != nil {
		a.logger.Warn("memory retrieval failed", "error", err)
		return userInput
	}
	return prompts.WithMemoryContext(memoryContext, userInput)
}

// finalize stores the exchange in long-term memory and the local
// archive. Both are best effort; failures are logged and forgotten.
func (a *Agent) finalize(ctx context.Context, userInput, response string, outcome *Outcome) {
	if a.memory.Enabled() {
		if err := a.memory.Store(ctx, userInput, response, a.userID); err != nil {
			a.logger.Warn("memory store failed", "error", err)
		}
	}

	if a.archive == nil {
		return
	}
	calls := make([]memory.ArchivedToolCall, 0, len(outcome.Results))
	for i, res := range outcome.Results {
		var input map[string]any
		if i < len(outcome.Requests) {
			input, _ = outcome.Requests[i].Input.(map[string]any)
		}
		calls = append(calls, memory.ArchivedToolCall{
			ToolUseID: res.ToolUseID,
			ToolName:  res.ToolName,
			Input:     input,
			Result:    res.Content,
			IsError:   res.IsError,
		})
	}
	if err := a.archive.RecordExchange(userInput, response, calls); err != nil {
		a.logger.Warn("archive record failed", "error", err)
	}
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"

	"github.com/agentwerkstatt/werkstatt/internal/conversation"
	"github.com/agentwerkstatt/werkstatt/internal/llm"
	"github.com/agentwerkstatt/werkstatt/internal/prompts"
)

// PlannerTool asks the model to break a goal into a step-by-step plan
// using the other tools in the registry.
type PlannerTool struct {
	llm      llm.Client
	registry *Registry
	model    string
	logger   *slog.Logger
}

// NewPlannerTool creates a planner backed by the given client and
// registry. The registry is consulted at execution time so the listing
// reflects tools registered after the planner itself.
func NewPlannerTool(client llm.Client, registry *Registry, model string, logger *slog.Logger) *PlannerTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlannerTool{
		llm:      client,
		registry: registry,
		model:    model,
		logger:   logger.With("tool", "planner"),
	}
}

func (t *PlannerTool) Name() string { return "planner" }

func (t *PlannerTool) Description() string {
	return "Creates a step-by-step plan to achieve a goal. " +
		"Use it to break down complex tasks into smaller, manageable steps. " +
		"Use it as the first step in your execution process."
}

func (t *PlannerTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"goal": {
				Type:        "string",
				Description: "The goal to be achieved.",
			},
		},
		Required: []string{"goal"},
	}
}

// Execute produces a plan for the given goal.
func (t *PlannerTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	goal, _ := input["goal"].(string)
	if goal == "" {
		return nil, fmt.Errorf("goal must be provided")
	}

	// List every tool except the planner itself.
	var listing strings.Builder
	for _, tool := range t.registry.All() {
		if tool.Name() == t.Name() {
			continue
		}
		fmt.Fprintf(&listing, "- %s: %s\n", tool.Name(), tool.Description())
	}

	turns := []conversation.Turn{
		conversation.UserText(prompts.PlannerPrompt(goal, listing.String())),
	}

	resp, err := t.llm.Chat(ctx, t.model, "", turns, nil)
	if err != nil {
		return nil, fmt.Errorf("planner llm call: %w", err)
	}

	text := conversation.Turn{Role: conversation.RoleAssistant, Blocks: resp.Content}.Text()

	plan, err := parsePlan(text)
	if err != nil {
		t.logger.Warn("planner returned unparseable output", "error", err)
		return nil, fmt.Errorf("could not parse plan: %w", err)
	}

	t.logger.Debug("plan created", "goal", goal, "steps", len(plan))
	return map[string]any{"plan": plan}, nil
}

// parsePlan extracts the "plan" array from the model's output. Models
// wrap JSON in prose or fences and drop trailing braces often enough
// that a repair pass runs before giving up.
func parsePlan(text string) ([]string, error) {
	raw := extractJSONObject(text)

	var doc struct {
		Plan []string `json:"plan"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		fixed, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
			return nil, err
		}
	}
	if len(doc.Plan) == 0 {
		return nil, fmt.Errorf("no plan steps in output")
	}
	return doc.Plan, nil
}

// extractJSONObject trims prose and code fences around the outermost
// JSON object. Returns the input unchanged if no braces are found.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

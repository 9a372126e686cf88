package prompts

import "fmt"

// plannerTemplate is the prompt sent to the model to produce a
// step-by-step plan. The format verbs are the goal and the formatted
// tool listing.
const plannerTemplate = `You are a meticulous planner agent. Your task is to create a detailed, step-by-step plan to achieve the user's goal.
The user's goal is: %q

Make use of the following tools to achieve the goal:
%s

Please create a plan to achieve the goal. The output MUST be a single, valid JSON object containing a single key named "plan" whose value is an array of step descriptions.`

// PlannerPrompt returns the fully interpolated planning prompt. The
// caller passes the formatted tool listing (one "- name: description"
// line per tool).
func PlannerPrompt(goal, toolListing string) string {
	return fmt.Sprintf(plannerTemplate, goal, toolListing)
}

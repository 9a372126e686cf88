// Package tools provides the tool registry and execution framework.
//
// This file defines sentinel error types for tool execution.
package tools

import "fmt"

// ErrToolUnavailable is returned when a tool call targets a tool that
// is not present in the effective registry. This indicates a capability
// mismatch (filtered out or nonexistent), not a transient execution
// failure; callers should not retry.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool '%s' not found", e.ToolName)
}

// Package conversation defines the transcript data model: typed content
// blocks, role-tagged turns, and the append-only History that supplies
// the context window for every LLM call.
package conversation

import "strings"

// Roles for transcript turns. Tool results ride inside a user-role turn
// immediately following the assistant turn that requested them; the
// Anthropic Messages API has no separate tool role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Block type discriminators, dictated by the Messages API wire format.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one typed fragment within a turn. The Type field
// selects which of the remaining fields are meaningful:
//
//	text        → Text
//	tool_use    → ID, Name, Input
//	tool_result → ToolUseID, Content, IsError
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// Input is declared any rather than map[string]any: the wire may
	// deliver a malformed non-object input, and the executor owns the
	// type check so it can degrade to an error result instead of a
	// decode failure.
	Input any `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool-call request block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	if input == nil {
		input = map[string]any{}
	}
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock builds a tool-call result block correlated to a
// request by its ID.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Turn is one role-tagged unit of conversation.
type Turn struct {
	Role   string         `json:"role"`
	Blocks []ContentBlock `json:"content"`
}

// UserText builds a user turn containing a single text block.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Blocks: []ContentBlock{TextBlock(text)}}
}

// AssistantText builds an assistant turn containing a single text block.
func AssistantText(text string) Turn {
	return Turn{Role: RoleAssistant, Blocks: []ContentBlock{TextBlock(text)}}
}

// Text concatenates the text blocks of the turn in order.
func (t Turn) Text() string {
	var sb strings.Builder
	for _, b := range t.Blocks {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool-call request blocks of the turn in order.
func (t Turn) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, b := range t.Blocks {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/agentwerkstatt/werkstatt/internal/conversation"
)

func TestChatSendsWireFormat(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "Hello."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 4}
		}`))
	}))
	defer server.Close()

	c := NewAnthropicClient("sk-test", nil)
	c.SetBaseURL(server.URL)

	turns := []conversation.Turn{conversation.UserText("hi")}
	tools := []Tool{{
		Name:        "web_search",
		Description: "search",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}}

	resp, err := c.Chat(context.Background(), "claude-test", "be brief", turns, tools)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotHeaders.Get("x-api-key") != "sk-test" {
		t.Errorf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") != "2023-06-01" {
		t.Errorf("anthropic-version = %q", gotHeaders.Get("anthropic-version"))
	}

	if gotBody["model"] != "claude-test" || gotBody["system"] != "be brief" {
		t.Errorf("body model/system = %v / %v", gotBody["model"], gotBody["system"])
	}
	if gotBody["max_tokens"] != float64(4096) {
		t.Errorf("max_tokens = %v", gotBody["max_tokens"])
	}
	msgs := gotBody["messages"].([]any)
	first := msgs[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "hi" {
		t.Errorf("first message = %v, want plain string content", first)
	}
	wireTools := gotBody["tools"].([]any)
	if wireTools[0].(map[string]any)["name"] != "web_search" {
		t.Errorf("tools = %v", wireTools)
	}

	if resp.StopReason != "end_turn" || resp.InputTokens != 12 || resp.OutputTokens != 4 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Content) != 1 || resp.Content[0].Text != "Hello." {
		t.Errorf("content = %+v", resp.Content)
	}
}

func TestChatDecodesToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"role": "assistant",
			"model": "claude-test",
			"content": [
				{"type": "text", "text": "Checking."},
				{"type": "tool_use", "id": "toolu_01", "name": "web_search", "input": {"query": "go"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer server.Close()

	c := NewAnthropicClient("sk-test", nil)
	c.SetBaseURL(server.URL)

	resp, err := c.Chat(context.Background(), "claude-test", "", []conversation.Turn{conversation.UserText("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Content) != 2 {
		t.Fatalf("content blocks = %d, want 2", len(resp.Content))
	}
	tu := resp.Content[1]
	if tu.Type != conversation.BlockToolUse || tu.ID != "toolu_01" || tu.Name != "web_search" {
		t.Errorf("tool_use block = %+v", tu)
	}
	input, ok := tu.Input.(map[string]any)
	if !ok || input["query"] != "go" {
		t.Errorf("input = %#v", tu.Input)
	}
}

func TestChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer server.Close()

	c := NewAnthropicClient("sk-test", nil)
	c.SetBaseURL(server.URL)

	_, err := c.Chat(context.Background(), "claude-test", "", []conversation.Turn{conversation.UserText("hi")}, nil)
	if err == nil {
		t.Fatal("429 not surfaced")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status code", err)
	}
	if !strings.Contains(err.Error(), "slow down") {
		t.Errorf("err = %v, want error body", err)
	}
}

func TestConvertTurns(t *testing.T) {
	turns := []conversation.Turn{
		conversation.UserText("plain"),
		{
			Role: conversation.RoleAssistant,
			Blocks: []conversation.ContentBlock{
				conversation.TextBlock("Let me check."),
				conversation.ToolUseBlock("toolu_01", "web_search", map[string]any{"query": "x"}),
			},
		},
		{
			Role: conversation.RoleUser,
			Blocks: []conversation.ContentBlock{
				conversation.ToolResultBlock("toolu_01", "result", false),
			},
		},
	}

	msgs := convertTurns(turns)
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}

	// Single text block collapses to string content.
	if _, ok := msgs[0].Content.(string); !ok {
		t.Errorf("msgs[0].Content type = %T, want string", msgs[0].Content)
	}
	// Mixed blocks stay as a block array.
	if _, ok := msgs[1].Content.([]conversation.ContentBlock); !ok {
		t.Errorf("msgs[1].Content type = %T, want block slice", msgs[1].Content)
	}
	// A lone tool_result is not text and must stay a block array.
	if _, ok := msgs[2].Content.([]conversation.ContentBlock); !ok {
		t.Errorf("msgs[2].Content type = %T, want block slice", msgs[2].Content)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": [], "usage": {}}`))
	}))
	defer server.Close()

	c := NewAnthropicClient("sk-test", nil)
	c.SetBaseURL(server.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPingInvalidKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewAnthropicClient("bad", nil)
	c.SetBaseURL(server.URL)
	err := c.Ping(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid API key") {
		t.Errorf("Ping err = %v, want invalid key", err)
	}
}

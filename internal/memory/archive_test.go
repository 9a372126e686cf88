package memory

import (
	"path/filepath"
	"testing"
)

func newTestArchive(t *testing.T) *ArchiveStore {
	t.Helper()
	store, err := NewArchiveStore(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewArchiveStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestArchiveRecordExchange(t *testing.T) {
	store := newTestArchive(t)

	err := store.RecordExchange("what time is it?", "It is noon.", nil)
	if err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["exchanges"] != 1 {
		t.Errorf("exchanges = %d, want 1", stats["exchanges"])
	}
	if stats["tool_calls"] != 0 {
		t.Errorf("tool_calls = %d, want 0", stats["tool_calls"])
	}
}

func TestArchiveRecordExchangeWithToolCalls(t *testing.T) {
	store := newTestArchive(t)

	calls := []ArchivedToolCall{
		{
			ToolUseID: "toolu_01",
			ToolName:  "web_search",
			Input:     map[string]any{"query": "weather"},
			Result:    `{"answer": "sunny"}`,
		},
		{
			ToolUseID: "toolu_02",
			ToolName:  "web_search",
			Input:     map[string]any{"query": "news"},
			Result:    "Error in tool 'web_search': timeout",
			IsError:   true,
		},
	}
	if err := store.RecordExchange("weather and news?", "Sunny; news failed.", calls); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["tool_calls"] != 2 {
		t.Errorf("tool_calls = %d, want 2", stats["tool_calls"])
	}
	if stats["tool_errors"] != 1 {
		t.Errorf("tool_errors = %d, want 1", stats["tool_errors"])
	}
}

func TestArchiveToolCallsByName(t *testing.T) {
	store := newTestArchive(t)

	calls := []ArchivedToolCall{
		{ToolUseID: "toolu_01", ToolName: "web_search", Input: map[string]any{"query": "a"}, Result: "r1"},
		{ToolUseID: "toolu_02", ToolName: "file_writer", Input: map[string]any{"filename": "a.md"}, Result: "r2"},
	}
	if err := store.RecordExchange("q", "a", calls); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}

	got, err := store.ToolCallsByName("web_search", 10)
	if err != nil {
		t.Fatalf("ToolCallsByName: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ToolUseID != "toolu_01" {
		t.Errorf("ToolUseID = %q, want toolu_01", got[0].ToolUseID)
	}
	if got[0].Input["query"] != "a" {
		t.Errorf("Input = %v, want decoded query", got[0].Input)
	}
}

func TestArchiveReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	store, err := NewArchiveStore(path)
	if err != nil {
		t.Fatalf("NewArchiveStore: %v", err)
	}
	if err := store.RecordExchange("q", "a", nil); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}
	store.Close()

	store, err = NewArchiveStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["exchanges"] != 1 {
		t.Errorf("exchanges after reopen = %d, want 1", stats["exchanges"])
	}
}

package conversation

import (
	"fmt"
	"sync"
	"testing"
)

func TestHistoryAppendExchange(t *testing.T) {
	h := NewHistory()

	h.AppendExchange(UserText("hi"), AssistantText("hello"))

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	turns := h.Snapshot()
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("roles = %s, %s, want user, assistant", turns[0].Role, turns[1].Role)
	}
}

// A snapshot taken before an append must not observe the new turns.
func TestHistorySnapshotIsolation(t *testing.T) {
	h := NewHistory()
	h.AppendExchange(UserText("first"), AssistantText("one"))

	snap := h.Snapshot()
	h.AppendExchange(UserText("second"), AssistantText("two"))

	if len(snap) != 2 {
		t.Errorf("snapshot len = %d, want 2", len(snap))
	}
	if h.Len() != 4 {
		t.Errorf("Len() = %d, want 4", h.Len())
	}

	// Mutating the snapshot must not reach the history.
	snap[0].Blocks[0].Text = "mutated"
	if got := h.Snapshot()[0].Text(); got == "mutated" {
		t.Error("snapshot mutation leaked into history")
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory()
	h.AppendExchange(UserText("hi"), AssistantText("hello"))

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", h.Len())
	}

	// Idempotent.
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len() after second Clear = %d, want 0", h.Len())
	}

	h.AppendExchange(UserText("again"), AssistantText("sure"))
	if h.Len() != 2 {
		t.Errorf("Len() after Clear+Append = %d, want 2", h.Len())
	}
}

// Exchanges appended from concurrent writers must land whole: the turn
// count stays a multiple of the exchange size and every user turn is
// immediately followed by its assistant turn.
func TestHistoryConcurrentAppend(t *testing.T) {
	h := NewHistory()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				tag := fmt.Sprintf("w%d-%d", w, i)
				h.AppendExchange(UserText("q "+tag), AssistantText("a "+tag))
			}
		}()
	}
	wg.Wait()

	turns := h.Snapshot()
	if len(turns) != writers*perWriter*2 {
		t.Fatalf("len = %d, want %d", len(turns), writers*perWriter*2)
	}
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != RoleUser || turns[i+1].Role != RoleAssistant {
			t.Fatalf("interleaved exchange at index %d: %s, %s", i, turns[i].Role, turns[i+1].Role)
		}
		wantTag := turns[i].Text()[2:]
		if gotTag := turns[i+1].Text()[2:]; gotTag != wantTag {
			t.Fatalf("exchange at index %d split: user %q, assistant %q", i, wantTag, gotTag)
		}
	}
}

// Readers running concurrently with writers must always see a prefix of
// whole exchanges, never a torn one.
func TestHistoryConcurrentReadWrite(t *testing.T) {
	h := NewHistory()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			h.AppendExchange(UserText(fmt.Sprintf("q%d", i)), AssistantText(fmt.Sprintf("a%d", i)))
		}
		close(done)
	}()

	for {
		turns := h.Snapshot()
		if len(turns)%2 != 0 {
			t.Errorf("torn read: %d turns", len(turns))
		}
		select {
		case <-done:
			wg.Wait()
			if h.Len() != 400 {
				t.Errorf("final Len() = %d, want 400", h.Len())
			}
			return
		default:
		}
	}
}

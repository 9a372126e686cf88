package conversation

import "sync"

// History owns the canonical transcript. It is append-only per exchange:
// the orchestrator commits a whole exchange at once after every tool
// execution and follow-up call succeeds, so a failed turn never leaves
// half-written state visible to the next one. Readers take snapshots
// rather than holding references into the backing slice.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory creates an empty transcript.
func NewHistory() *History {
	return &History{}
}

// AppendExchange records a completed exchange atomically. Either every
// turn is appended or (if the caller never reaches this point) none are.
func (h *History) AppendExchange(turns ...Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turns...)
}

// Snapshot returns a copy of the transcript in the order turns were
// committed, in the exact structure the LLM client expects.
func (h *History) Snapshot() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of top-level turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear resets the transcript to empty. Idempotent.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

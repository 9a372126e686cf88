package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentwerkstatt/werkstatt/internal/httpkit"
)

// ingestionPath is the Langfuse batch ingestion endpoint.
const ingestionPath = "/api/public/ingestion"

// Langfuse exports spans to a Langfuse server via the batch ingestion
// API. Events accumulate in memory and are sent on Flush; export
// failures are logged and dropped, never surfaced to callers.
type Langfuse struct {
	host       string
	publicKey  string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	pending []ingestionEvent
}

// NewLangfuse creates a Langfuse trace exporter.
func NewLangfuse(host, publicKey, secretKey string, logger *slog.Logger) *Langfuse {
	if logger == nil {
		logger = slog.Default()
	}
	return &Langfuse{
		host:       host,
		publicKey:  publicKey,
		secretKey:  secretKey,
		logger:     logger.With("service", "langfuse"),
		httpClient: httpkit.NewClient(),
	}
}

// ingestionEvent is one entry in a batch ingestion request.
type ingestionEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Body      map[string]any `json:"body"`
}

// Enabled reports whether credentials are configured.
func (l *Langfuse) Enabled() bool {
	return l.publicKey != "" && l.secretKey != ""
}

// StartTrace opens a root span and queues its trace-create event.
func (l *Langfuse) StartTrace(name string, input any) *Span {
	if !l.Enabled() {
		return nil
	}

	traceID := newEventID()
	span := &Span{
		ID:      newEventID(),
		TraceID: traceID,
		Name:    name,
		Started: time.Now().UTC(),
		input:   input,
	}

	l.enqueue(ingestionEvent{
		ID:        newEventID(),
		Type:      "trace-create",
		Timestamp: span.Started,
		Body: map[string]any{
			"id":        traceID,
			"name":      name,
			"input":     input,
			"timestamp": span.Started,
		},
	})
	return span
}

// StartSpan opens a child span under parent.
func (l *Langfuse) StartSpan(parent *Span, name string, input any) *Span {
	if !l.Enabled() {
		return nil
	}

	span := &Span{
		ID:      newEventID(),
		Name:    name,
		Started: time.Now().UTC(),
		input:   input,
	}
	if parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.ID
	} else {
		span.TraceID = newEventID()
	}

	l.enqueue(ingestionEvent{
		ID:        newEventID(),
		Type:      "span-create",
		Timestamp: span.Started,
		Body: map[string]any{
			"id":                  span.ID,
			"traceId":             span.TraceID,
			"parentObservationId": span.ParentID,
			"name":                name,
			"input":               input,
			"startTime":           span.Started,
		},
	})
	return span
}

// EndSpan closes the span with its output.
func (l *Langfuse) EndSpan(span *Span, output any) {
	if span == nil || !l.Enabled() {
		return
	}

	now := time.Now().UTC()
	l.enqueue(ingestionEvent{
		ID:        newEventID(),
		Type:      "span-update",
		Timestamp: now,
		Body: map[string]any{
			"id":      span.ID,
			"traceId": span.TraceID,
			"output":  output,
			"endTime": now,
		},
	})
}

// Flush posts all pending events as one batch. Failures are logged and
// the batch is dropped; a trace backlog must never wedge the agent.
func (l *Langfuse) Flush() {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{"batch": batch})
	if err != nil {
		l.logger.Warn("trace batch marshal failed", "error", err)
		return
	}

	req, err := http.NewRequest("POST", l.host+ingestionPath, bytes.NewReader(payload))
	if err != nil {
		l.logger.Warn("trace request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(l.publicKey, l.secretKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Warn("trace export failed", "error", err, "events", len(batch))
		return
	}
	defer resp.Body.Close()

	// Langfuse returns 207 for partial success.
	if resp.StatusCode >= 300 {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		l.logger.Warn("trace export rejected",
			"status", resp.StatusCode,
			"body", body,
			"events", len(batch),
		)
		return
	}
	httpkit.DrainAndClose(resp.Body, 4096)

	l.logger.Debug("trace batch exported", "events", len(batch))
}

func (l *Langfuse) enqueue(ev ingestionEvent) {
	l.mu.Lock()
	l.pending = append(l.pending, ev)
	l.mu.Unlock()
}

// SetBaseURL overrides the server host. Used by tests.
func (l *Langfuse) SetBaseURL(host string) {
	l.host = host
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("ev-%d", time.Now().UnixNano())
	}
	return id.String()
}

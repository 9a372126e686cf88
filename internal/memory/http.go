package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agentwerkstatt/werkstatt/internal/httpkit"
)

// HTTPService talks to a mem0-style memory server over HTTP.
type HTTPService struct {
	serverURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPService creates a memory client for the given server URL.
func NewHTTPService(serverURL string, logger *slog.Logger) *HTTPService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPService{
		serverURL:  strings.TrimRight(serverURL, "/"),
		logger:     logger.With("service", "memory"),
		httpClient: httpkit.NewClient(),
	}
}

// Enabled reports whether a server URL is configured.
func (s *HTTPService) Enabled() bool {
	return s.serverURL != ""
}

// searchResponse is the memory server's search result shape.
type searchResponse struct {
	Results []struct {
		Memory string  `json:"memory"`
		Score  float64 `json:"score"`
	} `json:"results"`
}

// Retrieve searches stored memories and formats matches as a context
// section for prompt injection.
func (s *HTTPService) Retrieve(ctx context.Context, userInput, userID string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	body, err := s.post(ctx, "/search", map[string]any{
		"query":   userInput,
		"user_id": userID,
	})
	if err != nil {
		return "", err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode memory search: %w", err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("Relevant memories from previous conversations:\n")
	for _, r := range resp.Results {
		sb.WriteString("- ")
		sb.WriteString(r.Memory)
		sb.WriteString("\n")
	}

	s.logger.Debug("memories retrieved", "count", len(resp.Results))
	return strings.TrimRight(sb.String(), "\n"), nil
}

// Store records a completed exchange for future retrieval.
func (s *HTTPService) Store(ctx context.Context, userInput, assistantResponse, userID string) error {
	if !s.Enabled() {
		return nil
	}

	_, err := s.post(ctx, "/memories", map[string]any{
		"messages": []map[string]string{
			{"role": "user", "content": userInput},
			{"role": "assistant", "content": assistantResponse},
		},
		"user_id": userID,
	})
	return err
}

func (s *HTTPService) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memory server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("memory server error %d: %s", resp.StatusCode, errBody)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return buf.Bytes(), nil
}

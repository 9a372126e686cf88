package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/agentwerkstatt/werkstatt/internal/httpkit"
)

// WebSearchTool performs web searches through the Tavily API.
type WebSearchTool struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebSearchTool creates a web search tool. The API key comes from
// the TAVILY_API_KEY environment variable at wiring time.
func NewWebSearchTool(apiKey, baseURL string, logger *slog.Logger) *WebSearchTool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSearchTool{
		apiKey:  apiKey,
		baseURL: baseURL,
		logger:  logger.With("tool", "web_search"),
		// Search queries can be slow on deep questions.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(60 * time.Second)),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Searches the web for real-time information, news, and answers using the Tavily search engine."
}

func (t *WebSearchTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {
				Type:        "string",
				Description: "The search query to look up.",
			},
			"max_results": {
				Type:        "integer",
				Description: "The maximum number of results to return (default: 5).",
			},
		},
		Required: []string{"query"},
	}
}

// Execute runs a web search with the given query.
func (t *WebSearchTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("Tavily API key (TAVILY_API_KEY) is not set")
	}

	query, _ := input["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("a search query must be provided")
	}

	maxResults := 5
	if n, ok := input["max_results"].(float64); ok {
		maxResults = int(n)
	}
	maxResults = min(max(maxResults, 1), 20)

	payload := map[string]any{
		"api_key":        t.apiKey,
		"query":          query,
		"max_results":    maxResults,
		"search_depth":   "basic",
		"include_answer": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		t.logger.Error("search API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("search API error %d: %s", resp.StatusCode, errBody)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("search API returned malformed JSON")
	}

	// Extract only the fields the model needs; the raw Tavily response
	// carries scoring metadata that just burns context tokens.
	result := map[string]any{
		"query":  query,
		"answer": gjson.GetBytes(raw, "answer").String(),
	}
	var results []map[string]any
	for _, r := range gjson.GetBytes(raw, "results").Array() {
		results = append(results, map[string]any{
			"title":   r.Get("title").String(),
			"url":     r.Get("url").String(),
			"content": r.Get("content").String(),
		})
	}
	result["results"] = results

	t.logger.Debug("search complete", "query", query, "results", len(results))
	return result, nil
}

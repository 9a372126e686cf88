package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agentwerkstatt/werkstatt/internal/config"
	"github.com/agentwerkstatt/werkstatt/internal/conversation"
	"github.com/agentwerkstatt/werkstatt/internal/httpkit"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"

	// maxTokens caps each response; matches the reference payload.
	maxTokens = 4096
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	// LLM responses can take significant time before sending headers
	// (long prompts, many tools). Use a custom transport with a generous
	// response header timeout.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: anthropicAPIURL,
		logger:  logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			// No global timeout — rely on ctx deadlines for cancellation.
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *AnthropicClient) SetBaseURL(u string) {
	c.baseURL = u
}

// Anthropic request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []Tool             `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []conversation.ContentBlock
}

type anthropicResponse struct {
	ID         string                      `json:"id"`
	Type       string                      `json:"type"`
	Role       string                      `json:"role"`
	Content    []conversation.ContentBlock `json:"content"`
	Model      string                      `json:"model"`
	StopReason string                      `json:"stop_reason"`
	Usage      anthropicUsage              `json:"usage"`
	Error      *anthropicError             `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chat sends a non-streaming chat request carrying the full transcript.
func (c *AnthropicClient) Chat(ctx context.Context, model, system string, turns []conversation.Turn, tools []Tool) (*Response, error) {
	req := anthropicRequest{
		Model:     model,
		Messages:  convertTurns(turns),
		System:    system,
		MaxTokens: maxTokens,
		Tools:     tools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(req.Messages),
		"tools", len(tools),
		"system_len", len(system),
	)
	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, errBody)
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic API error: %s", apiResp.Error.Message)
	}

	result := &Response{
		Model:        apiResp.Model,
		Content:      apiResp.Content,
		StopReason:   apiResp.StopReason,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}

	c.logger.Debug("response received",
		"model", result.Model,
		"stop_reason", result.StopReason,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"blocks", len(result.Content),
	)

	return result, nil
}

// Ping checks if the Anthropic API is reachable. Anthropic has no
// dedicated health endpoint, so a minimal request verifies the API key.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	req := anthropicRequest{
		Model:     "claude-sonnet-4-20250514",
		Messages:  []anthropicMessage{{Role: conversation.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from Anthropic API: %d", httpResp.StatusCode)
	}
	return nil
}

// convertTurns maps transcript turns to wire messages. A turn holding a
// single text block is sent as plain string content; anything else is
// sent as a content-block array.
func convertTurns(turns []conversation.Turn) []anthropicMessage {
	msgs := make([]anthropicMessage, 0, len(turns))
	for _, t := range turns {
		if len(t.Blocks) == 1 && t.Blocks[0].Type == conversation.BlockText {
			msgs = append(msgs, anthropicMessage{Role: t.Role, Content: t.Blocks[0].Text})
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: t.Role, Content: t.Blocks})
	}
	return msgs
}

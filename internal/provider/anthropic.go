package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicAPIVersion     = "2023-06-01"
	anthropicDefaultTimeout = 60 * time.Second

	// Anthropic requires max_tokens on every request.
	anthropicFallbackMaxTokens = 4096
)

// AnthropicOptions configures the Anthropic adapter.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// AnthropicAdapter dispatches completions to the Anthropic messages API.
type AnthropicAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type anthropicMessageRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewAnthropicAdapter builds an Anthropic adapter. The API key is required.
func NewAnthropicAdapter(opts AnthropicOptions) (*AnthropicAdapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = anthropicDefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &AnthropicAdapter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Dispatch performs one messages call. Anthropic reports exact input and
// output token usage, so TokensUsed comes from the response body.
func (a *AnthropicAdapter) Dispatch(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = anthropicFallbackMaxTokens
	}
	payload := anthropicMessageRequest{
		Model:       upstreamModel(req.Model),
		MaxTokens:   maxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	}
	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "build request", Err: err}
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "request failed", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp anthropicErrorResponse
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &Error{Provider: a.Name(), Model: req.Model, StatusCode: resp.StatusCode, Message: msg}
	}

	var msgResp anthropicMessageResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "malformed response payload", Err: err}
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "response contained no text content"}
	}

	tokens := msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens
	if tokens == 0 {
		tokens = EstimateTokens(len(req.Prompt), text.Len())
	}

	return &Response{Text: text.String(), TokensUsed: tokens, Model: req.Model}, nil
}

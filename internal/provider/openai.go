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
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIDefaultTimeout = 60 * time.Second
)

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIAdapter dispatches completions to the OpenAI chat completions API.
type OpenAIAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIAdapter builds an OpenAI adapter. The API key is required.
func NewOpenAIAdapter(opts OpenAIOptions) (*OpenAIAdapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = openAIDefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenAIAdapter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (a *OpenAIAdapter) Name() string { return "openai" }

// Dispatch performs one chat completion call. OpenAI reports exact usage,
// so TokensUsed comes from the response body.
func (a *OpenAIAdapter) Dispatch(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openAIMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	payload := openAIChatRequest{
		Model:       upstreamModel(req.Model),
		Messages:    messages,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
	}
	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
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
		var errResp openAIErrorResponse
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &Error{Provider: a.Name(), Model: req.Model, StatusCode: resp.StatusCode, Message: msg}
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "malformed response payload", Err: err}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "response contained no choices"}
	}

	text := chatResp.Choices[0].Message.Content
	tokens := chatResp.Usage.TotalTokens
	if tokens == 0 {
		tokens = chatResp.Usage.PromptTokens + chatResp.Usage.CompletionTokens
	}
	if tokens == 0 {
		tokens = EstimateTokens(len(req.Prompt), len(text))
	}

	return &Response{Text: text, TokensUsed: tokens, Model: req.Model}, nil
}

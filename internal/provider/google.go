package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	googleDefaultTimeout = 60 * time.Second
)

// GoogleOptions configures the Google (Gemini) adapter.
type GoogleOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GoogleAdapter dispatches completions to the Gemini generateContent API.
type GoogleAdapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type googleGenerateRequest struct {
	Contents          []googleContent         `json:"contents"`
	SystemInstruction *googleContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenerationConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type googleGenerateResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

type googleErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGoogleAdapter builds a Gemini adapter. The API key is required.
func NewGoogleAdapter(opts GoogleOptions) (*GoogleAdapter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("google api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = googleDefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &GoogleAdapter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

func (a *GoogleAdapter) Name() string { return "google" }

// Dispatch performs one generateContent call. The Gemini reply does not
// carry a usage block we consume, so TokensUsed is the deterministic
// estimate over prompt and response characters.
func (a *GoogleAdapter) Dispatch(ctx context.Context, req Request) (*Response, error) {
	payload := googleGenerateRequest{
		Contents: []googleContent{
			{Role: "user", Parts: []googlePart{{Text: req.Prompt}}},
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.System}}}
	}
	if req.Temperature != 0 || req.MaxOutputTokens != 0 {
		payload.GenerationConfig = &googleGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
	}
	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "marshal request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		a.baseURL, url.PathEscape(upstreamModel(req.Model)), url.QueryEscape(a.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "build request", Err: err}
	}
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
		var errResp googleErrorResponse
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &Error{Provider: a.Name(), Model: req.Model, StatusCode: resp.StatusCode, Message: msg}
	}

	var genResp googleGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "malformed response payload", Err: err}
	}
	if len(genResp.Candidates) == 0 {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "response contained no candidates"}
	}

	var text strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return nil, &Error{Provider: a.Name(), Model: req.Model, Message: "response contained no text parts"}
	}

	return &Response{
		Text:       text.String(),
		TokensUsed: EstimateTokens(len(req.Prompt), text.Len()),
		Model:      req.Model,
	}, nil
}

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicDispatchSuccess(t *testing.T) {
	var gotVersion, gotKey string
	var gotBody anthropicMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "a card "}, {"type": "text", "text": "layout"}],
			"usage": {"input_tokens": 10, "output_tokens": 25}
		}`))
	}))
	defer srv.Close()

	a, err := NewAnthropicAdapter(AnthropicOptions{APIKey: "ak-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicAdapter returned error: %v", err)
	}
	resp, err := a.Dispatch(context.Background(), Request{
		Model:  "anthropic/claude-3-haiku",
		Prompt: "design a card",
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if gotKey != "ak-test" || gotVersion == "" {
		t.Fatalf("headers = key %q version %q", gotKey, gotVersion)
	}
	if gotBody.Model != "claude-3-haiku" {
		t.Fatalf("upstream model = %q", gotBody.Model)
	}
	if gotBody.MaxTokens == 0 {
		t.Fatal("anthropic requests must always set max_tokens")
	}
	if resp.Text != "a card layout" {
		t.Fatalf("text = %q", resp.Text)
	}
	if resp.TokensUsed != 35 {
		t.Fatalf("tokens = %d, want input+output = 35", resp.TokensUsed)
	}
}

func TestAnthropicDispatchUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid x-api-key", "type": "authentication_error"}}`))
	}))
	defer srv.Close()

	a, err := NewAnthropicAdapter(AnthropicOptions{APIKey: "bad", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicAdapter returned error: %v", err)
	}
	_, err = a.Dispatch(context.Background(), Request{Model: "anthropic/claude-3-haiku", Prompt: "hi"})
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *provider.Error", err)
	}
	if provErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", provErr.StatusCode)
	}
}

func TestAnthropicDispatchNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [], "usage": {"input_tokens": 1, "output_tokens": 0}}`))
	}))
	defer srv.Close()

	a, err := NewAnthropicAdapter(AnthropicOptions{APIKey: "ak-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicAdapter returned error: %v", err)
	}
	if _, err := a.Dispatch(context.Background(), Request{Model: "anthropic/claude-3-haiku", Prompt: "hi"}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

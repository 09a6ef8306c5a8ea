package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGoogleDispatchEstimatesTokens(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "a hero section"}]}}]
		}`))
	}))
	defer srv.Close()

	a, err := NewGoogleAdapter(GoogleOptions{APIKey: "gk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGoogleAdapter returned error: %v", err)
	}
	prompt := "build a hero section for a landing page"
	resp, err := a.Dispatch(context.Background(), Request{Model: "google/gemini-1.5-flash", Prompt: prompt})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if !strings.Contains(gotPath, "/models/gemini-1.5-flash:generateContent") {
		t.Fatalf("path = %q", gotPath)
	}
	want := EstimateTokens(len(prompt), len("a hero section"))
	if resp.TokensUsed != want {
		t.Fatalf("tokens = %d, want estimate %d", resp.TokensUsed, want)
	}
	if resp.TokensUsed <= 0 {
		t.Fatal("estimate must be positive for non-empty prompt")
	}
}

func TestGoogleDispatchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded", "status": "UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	a, err := NewGoogleAdapter(GoogleOptions{APIKey: "gk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGoogleAdapter returned error: %v", err)
	}
	_, err = a.Dispatch(context.Background(), Request{Model: "google/gemini-1.5-pro", Prompt: "hi"})
	var provErr *Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *provider.Error", err)
	}
	if provErr.StatusCode != http.StatusServiceUnavailable || provErr.Message != "model overloaded" {
		t.Fatalf("error = %+v", provErr)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		name     string
		prompt   int
		response int
		want     int64
	}{
		{name: "exact_multiple", prompt: 4, response: 4, want: 2},
		{name: "rounds_up", prompt: 5, response: 0, want: 2},
		{name: "zero", prompt: 0, response: 0, want: 0},
		{name: "hundred_chars", prompt: 100, response: 0, want: 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateTokens(tc.prompt, tc.response); got != tc.want {
				t.Fatalf("EstimateTokens(%d, %d) = %d, want %d", tc.prompt, tc.response, got, tc.want)
			}
		})
	}
}

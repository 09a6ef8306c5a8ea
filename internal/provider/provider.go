package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnsupportedModel is returned when no registered adapter recognizes the
// model id's provider prefix.
var ErrUnsupportedModel = errors.New("unsupported model")

// Request is the normalized completion request shared by all adapters.
// Model carries the full namespaced id ("openai/gpt-4o"); adapters strip
// the prefix before talking to the upstream API.
type Request struct {
	Model           string
	Prompt          string
	System          string
	MaxOutputTokens int
	Temperature     float64
}

// Response is the normalized reply. TokensUsed is always populated: from
// the upstream usage block when the provider reports one, otherwise from
// EstimateTokens.
type Response struct {
	Text       string
	TokensUsed int64
	Model      string
}

// Adapter translates a normalized request into one provider-specific HTTP
// call. One outbound call per Dispatch, no retries.
type Adapter interface {
	Name() string
	Dispatch(ctx context.Context, req Request) (*Response, error)
}

// Error is the single failure taxonomy for upstream calls: transport
// errors, non-2xx statuses, and malformed payloads all surface as *Error.
type Error struct {
	Provider   string
	Model      string
	StatusCode int // upstream HTTP status, 0 for transport failures
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: model %s: upstream status %d: %s", e.Provider, e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: model %s: %s", e.Provider, e.Model, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// EstimateTokens is the deterministic fallback used when an upstream does
// not report consumed tokens: ceil((promptChars + responseChars) / 4).
func EstimateTokens(promptChars, responseChars int) int64 {
	return int64(math.Ceil(float64(promptChars+responseChars) / 4))
}

// upstreamModel strips the "provider/" namespace from a model id, leaving
// the name the upstream API expects.
func upstreamModel(modelID string) string {
	if _, name, ok := strings.Cut(modelID, "/"); ok {
		return name
	}
	return modelID
}

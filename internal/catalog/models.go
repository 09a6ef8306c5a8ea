package catalog

import "strings"

// ModelDescriptor describes one upstream model. The table is static;
// changing it is a deployment, not a data mutation.
type ModelDescriptor struct {
	ID              string
	Provider        string
	MaxOutputTokens int
	USDPerThousand  float64
}

// ProviderOf extracts the provider prefix from a namespaced model id such
// as "openai/gpt-4o". It returns "" when the id has no namespace.
func ProviderOf(modelID string) string {
	prefix, _, ok := strings.Cut(modelID, "/")
	if !ok {
		return ""
	}
	return prefix
}

// DefaultModels returns the production model table keyed by model id.
func DefaultModels() map[string]ModelDescriptor {
	descriptors := []ModelDescriptor{
		{ID: "openai/gpt-4o-mini", Provider: "openai", MaxOutputTokens: 4096, USDPerThousand: 0.0006},
		{ID: "openai/gpt-4o", Provider: "openai", MaxOutputTokens: 4096, USDPerThousand: 0.01},
		{ID: "openai/o1", Provider: "openai", MaxOutputTokens: 8192, USDPerThousand: 0.036},
		{ID: "anthropic/claude-3-haiku", Provider: "anthropic", MaxOutputTokens: 4096, USDPerThousand: 0.0008},
		{ID: "anthropic/claude-3-5-sonnet", Provider: "anthropic", MaxOutputTokens: 8192, USDPerThousand: 0.009},
		{ID: "anthropic/claude-3-opus", Provider: "anthropic", MaxOutputTokens: 4096, USDPerThousand: 0.045},
		{ID: "google/gemini-1.5-flash", Provider: "google", MaxOutputTokens: 8192, USDPerThousand: 0.0003},
		{ID: "google/gemini-1.5-pro", Provider: "google", MaxOutputTokens: 8192, USDPerThousand: 0.005},
	}
	table := make(map[string]ModelDescriptor, len(descriptors))
	for _, d := range descriptors {
		table[d.ID] = d
	}
	return table
}

package dto

// ChatRequestDTO is the POST /chat body. Context carries optional canvas
// context the plugin wants folded into the system prompt.
type ChatRequestDTO struct {
	UserID  string `json:"userId" validate:"required"`
	Model   string `json:"model" validate:"required"`
	Prompt  string `json:"prompt" validate:"required"`
	Mode    string `json:"mode" validate:"omitempty,oneof=chat agent"`
	Context string `json:"context,omitempty"`
}

type ChatResponseDTO struct {
	Result     string  `json:"result"`
	TokenUsage int64   `json:"tokenUsage"`
	Cost       float64 `json:"cost"`
	Model      string  `json:"model"`
	Mode       string  `json:"mode"`
}

// PlanRejectionDTO is the 403 payload for a model outside the user's plan.
type PlanRejectionDTO struct {
	Error        string `json:"error"`
	RequiredPlan string `json:"requiredPlan"`
	CurrentPlan  string `json:"currentPlan"`
}

// QuotaRejectionDTO is the 429 payload for an exhausted monthly quota.
type QuotaRejectionDTO struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion"`
}

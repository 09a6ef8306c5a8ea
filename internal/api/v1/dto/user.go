package dto

import "time"

type UserCreateDTO struct {
	Name      string `json:"name" validate:"required,min=1,max=200"`
	Email     string `json:"email" validate:"required,email"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

type UserUpdateDTO struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

type UserResponseDTO struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UsageRecordDTO struct {
	Model      string    `json:"model"`
	TokensUsed int64     `json:"tokens_used"`
	CostUSD    float64   `json:"cost_usd"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

type UsageSummaryDTO struct {
	Plan        string           `json:"plan"`
	QuotaTokens int64            `json:"quota_tokens"`
	TotalTokens int64            `json:"total_tokens"`
	TotalCost   float64          `json:"total_cost"`
	Recent      []UsageRecordDTO `json:"recent"`
}

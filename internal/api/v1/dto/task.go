package dto

import "time"

type TaskCreateDTO struct {
	Title  string `json:"title" validate:"required,min=1,max=200"`
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model" validate:"required"`
}

type TaskResponseDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	Status    string    `json:"status"`
	Result    *string   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package model

import "time"

// Generation task statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// GenerationTask is a queued component-generation job. The worker runs it
// through the same completion pipeline as interactive chat, so it is
// metered and billed identically (kind=task).
type GenerationTask struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Title        string    `db:"title" json:"title"`
	Prompt       string    `db:"prompt" json:"prompt"`
	Model        string    `db:"model" json:"model"`
	Status       string    `db:"status" json:"status"`
	Result       *string   `db:"result" json:"result,omitempty"`
	ErrorDetails []byte    `db:"error_details" json:"error_details,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

package model

import "time"

// Request kinds stored on usage records.
const (
	KindChat  = "chat"
	KindAgent = "agent"
	KindTask  = "task"
)

// UsageRecord is one immutable row in the append-only usage ledger,
// written exactly once per successfully completed provider call.
type UsageRecord struct {
	ID         int64     `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Model      string    `db:"model" json:"model"`
	TokensUsed int64     `db:"tokens_used" json:"tokens_used"`
	CostUSD    float64   `db:"cost_usd" json:"cost_usd"`
	Kind       string    `db:"kind" json:"kind"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MonthlyUsage is the derived current-month aggregate over the ledger.
// It is always recomputed from the records, never cached.
type MonthlyUsage struct {
	TotalTokens int64   `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
}

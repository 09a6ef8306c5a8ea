package repository

import (
	"context"
	"fmt"
	"time"

	"framium/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is the append-only usage ledger. Rows are never mutated
// or deleted; the monthly quota check is always a derived aggregate over
// the records, never a stored counter.
type UsageRepository interface {
	// Record appends one immutable usage row and returns its id. It must be
	// called at most once per successfully completed provider dispatch and
	// never on failure.
	Record(ctx context.Context, userID, modelID string, tokens int64, costUSD float64, kind string) (int64, error)
	// MonthlyUsage aggregates all records for the user with created_at on or
	// after monthStart. An empty month yields zero values, not an error.
	MonthlyUsage(ctx context.Context, userID string, monthStart time.Time) (model.MonthlyUsage, error)
	// ListRecent returns the user's newest usage records.
	ListRecent(ctx context.Context, userID string, limit int) ([]model.UsageRecord, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) Record(ctx context.Context, userID, modelID string, tokens int64, costUSD float64, kind string) (int64, error) {
	const q = `
        INSERT INTO usage_records (user_id, model, tokens_used, cost_usd, kind)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	var id int64
	if err := r.pool.QueryRow(ctx, q, userID, modelID, tokens, costUSD, kind).Scan(&id); err != nil {
		return 0, fmt.Errorf("recording usage for user %s: %w", userID, err)
	}
	return id, nil
}

func (r *usageRepo) MonthlyUsage(ctx context.Context, userID string, monthStart time.Time) (model.MonthlyUsage, error) {
	const q = `
        SELECT COALESCE(SUM(tokens_used), 0), COALESCE(SUM(cost_usd), 0)
        FROM usage_records
        WHERE user_id = $1
          AND created_at >= $2
    `
	var usage model.MonthlyUsage
	if err := r.pool.QueryRow(ctx, q, userID, monthStart).Scan(&usage.TotalTokens, &usage.TotalCost); err != nil {
		return model.MonthlyUsage{}, fmt.Errorf("aggregating monthly usage for user %s: %w", userID, err)
	}
	return usage, nil
}

func (r *usageRepo) ListRecent(ctx context.Context, userID string, limit int) ([]model.UsageRecord, error) {
	const q = `
        SELECT id, user_id, model, tokens_used, cost_usd, kind, created_at
        FROM usage_records
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing usage for user %s: %w", userID, err)
	}
	defer rows.Close()

	var records []model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Model, &rec.TokensUsed, &rec.CostUSD, &rec.Kind, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage records: %w", err)
	}
	return records, nil
}

package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"framium/internal/catalog"
	"framium/internal/model"
	"framium/internal/repository"
)

// EstimateRequestTokens estimates the token footprint of a pending request
// for the admission check only (billing uses the tokens the provider
// actually reports): ceil(promptChars/4) * 1.5, rounded up. The 1.5 factor
// covers the expected response and deliberately biases toward
// under-admitting long requests.
func EstimateRequestTokens(prompt string) int64 {
	promptTokens := math.Ceil(float64(len(prompt)) / 4)
	return int64(math.Ceil(promptTokens * 1.5))
}

// startOfMonthUTC returns UTC midnight on the first of the month
// containing t. The quota window resets at this boundary.
func startOfMonthUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// QuotaGuard decides whether a request of estimated size is admissible for
// a user's plan and current-month usage. The check is advisory and
// optimistic: it holds no lock, so two concurrent requests from the same
// user can both pass and jointly overrun the quota by at most one
// request's worth of tokens.
type QuotaGuard struct {
	usageRepo repository.UsageRepository
	catalog   *catalog.Catalog
	now       func() time.Time
}

// NewQuotaGuard creates a QuotaGuard over the usage ledger and plan
// catalog.
func NewQuotaGuard(usageRepo repository.UsageRepository, cat *catalog.Catalog) *QuotaGuard {
	return &QuotaGuard{usageRepo: usageRepo, catalog: cat, now: time.Now}
}

// CanProceed reports whether the user's current-month usage plus the
// estimate fits within the plan's quota, along with the usage aggregate it
// read.
func (g *QuotaGuard) CanProceed(ctx context.Context, userID string, tier catalog.Tier, estimatedTokens int64) (bool, model.MonthlyUsage, error) {
	usage, err := g.usageRepo.MonthlyUsage(ctx, userID, startOfMonthUTC(g.now()))
	if err != nil {
		return false, model.MonthlyUsage{}, fmt.Errorf("reading monthly usage: %w", err)
	}
	return usage.TotalTokens+estimatedTokens <= g.catalog.QuotaTokens(tier), usage, nil
}

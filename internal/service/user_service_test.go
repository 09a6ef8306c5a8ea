package service

import (
	"context"
	"errors"
	"testing"

	"framium/internal/catalog"
	"framium/internal/model"

	"github.com/rs/zerolog"
)

func newTestUserService(users *fakeUserRepo, usage *fakeUsageRepo) UserService {
	return NewUserService(users, usage, catalog.Default(), nil, zerolog.Nop())
}

func TestSignupDefaultsToBasicPlan(t *testing.T) {
	users := &fakeUserRepo{}
	svc := newTestUserService(users, &fakeUsageRepo{})

	u, err := svc.Signup(context.Background(), "u1", "Ada", "ada@example.com", "")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if u.Plan != "basic" {
		t.Errorf("plan = %q, want basic", u.Plan)
	}
	if users.users["u1"] == nil {
		t.Error("user was not stored")
	}
}

func TestGetUserNotFound(t *testing.T) {
	svc := newTestUserService(&fakeUserRepo{}, &fakeUsageRepo{})
	if _, err := svc.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestUsageSummary(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "max"},
	}}
	usage := &fakeUsageRepo{}
	ctx := context.Background()
	if _, err := usage.Record(ctx, "u1", "openai/gpt-4o", 1_000, 0.01, model.KindChat); err != nil {
		t.Fatal(err)
	}
	if _, err := usage.Record(ctx, "u1", "anthropic/claude-3-5-sonnet", 2_000, 0.006, model.KindTask); err != nil {
		t.Fatal(err)
	}
	if _, err := usage.Record(ctx, "other", "openai/gpt-4o", 50_000, 0.5, model.KindChat); err != nil {
		t.Fatal(err)
	}

	svc := newTestUserService(users, usage)
	summary, err := svc.UsageSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("UsageSummary returned error: %v", err)
	}
	if summary.Plan != catalog.TierMax {
		t.Errorf("plan = %q, want max", summary.Plan)
	}
	if summary.QuotaTokens != 1_000_000 {
		t.Errorf("quota = %d, want 1000000", summary.QuotaTokens)
	}
	if summary.Monthly.TotalTokens != 3_000 {
		t.Errorf("monthly tokens = %d, want 3000", summary.Monthly.TotalTokens)
	}
	if len(summary.Recent) != 2 {
		t.Errorf("recent has %d records, want 2", len(summary.Recent))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"framium/internal/catalog"
	"framium/internal/model"
	"framium/internal/provider"

	"github.com/rs/zerolog"
)

// fakeUserRepo serves users from a map keyed by user id.
type fakeUserRepo struct {
	users map[string]*model.User
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, u *model.User) error {
	if f.users == nil {
		f.users = make(map[string]*model.User)
	}
	f.users[u.UserID] = u
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	for _, u := range f.users {
		if u.StripeCustomerID != nil && *u.StripeCustomerID == customerID {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, id, name, avatarURL string) (*model.User, error) {
	u := f.users[id]
	if name != "" {
		u.Name = name
	}
	if avatarURL != "" {
		u.AvatarURL = avatarURL
	}
	return u, nil
}

func (f *fakeUserRepo) UpdatePlan(ctx context.Context, id, plan string) error {
	f.users[id].Plan = plan
	return nil
}

func (f *fakeUserRepo) UpdateStripeCustomerID(ctx context.Context, id, customerID string) error {
	f.users[id].StripeCustomerID = &customerID
	return nil
}

// fakeUsageRepo is an in-memory append-only ledger.
type fakeUsageRepo struct {
	records   []model.UsageRecord
	recordErr error
}

func (f *fakeUsageRepo) Record(ctx context.Context, userID, modelID string, tokens int64, costUSD float64, kind string) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.records = append(f.records, model.UsageRecord{
		ID:         int64(len(f.records) + 1),
		UserID:     userID,
		Model:      modelID,
		TokensUsed: tokens,
		CostUSD:    costUSD,
		Kind:       kind,
		CreatedAt:  time.Now(),
	})
	return int64(len(f.records)), nil
}

// recordAt appends a row with an explicit timestamp, for tests that cross
// the month boundary.
func (f *fakeUsageRepo) recordAt(userID, modelID string, tokens int64, costUSD float64, kind string, createdAt time.Time) {
	f.records = append(f.records, model.UsageRecord{
		ID:         int64(len(f.records) + 1),
		UserID:     userID,
		Model:      modelID,
		TokensUsed: tokens,
		CostUSD:    costUSD,
		Kind:       kind,
		CreatedAt:  createdAt,
	})
}

func (f *fakeUsageRepo) MonthlyUsage(ctx context.Context, userID string, monthStart time.Time) (model.MonthlyUsage, error) {
	var agg model.MonthlyUsage
	for _, rec := range f.records {
		if rec.UserID == userID && !rec.CreatedAt.Before(monthStart) {
			agg.TotalTokens += rec.TokensUsed
			agg.TotalCost += rec.CostUSD
		}
	}
	return agg, nil
}

func (f *fakeUsageRepo) ListRecent(ctx context.Context, userID string, limit int) ([]model.UsageRecord, error) {
	var out []model.UsageRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

// stubDispatcher returns a canned response or error.
type stubDispatcher struct {
	resp     *provider.Response
	err      error
	requests []provider.Request
}

func (s *stubDispatcher) Route(ctx context.Context, req provider.Request) (*provider.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newTestChatService(users *fakeUserRepo, usage *fakeUsageRepo, disp Dispatcher) ChatService {
	cat := catalog.Default()
	quota := NewQuotaGuard(usage, cat)
	return NewChatService(users, usage, quota, disp, cat, catalog.DefaultPricing(), catalog.DefaultModels(), zerolog.Nop())
}

func TestCompleteHappyPathRecordsUsage(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "basic"},
	}}
	usage := &fakeUsageRepo{}
	disp := &stubDispatcher{resp: &provider.Response{Text: "hello", TokensUsed: 500, Model: "openai/gpt-4o-mini"}}

	svc := newTestChatService(users, usage, disp)
	result, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-4o-mini",
		Prompt: "say hello",
		Mode:   "chat",
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("result text = %q, want %q", result.Text, "hello")
	}
	if result.TokensUsed != 500 {
		t.Errorf("tokens used = %d, want 500", result.TokensUsed)
	}
	if len(usage.records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(usage.records))
	}
	rec := usage.records[0]
	if rec.UserID != "u1" || rec.Model != "openai/gpt-4o-mini" || rec.TokensUsed != 500 {
		t.Errorf("unexpected ledger record: %+v", rec)
	}
	if rec.Kind != model.KindChat {
		t.Errorf("record kind = %q, want %q", rec.Kind, model.KindChat)
	}
	if result.CostUSD != rec.CostUSD {
		t.Errorf("response cost %f differs from recorded cost %f", result.CostUSD, rec.CostUSD)
	}
}

func TestCompleteUserNotFound(t *testing.T) {
	svc := newTestChatService(&fakeUserRepo{}, &fakeUsageRepo{}, &stubDispatcher{})
	_, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "ghost",
		Model:  "openai/gpt-4o-mini",
		Prompt: "hi",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestCompleteModelAboveTierRejectedWithoutDispatch(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "basic"},
	}}
	usage := &fakeUsageRepo{}
	disp := &stubDispatcher{resp: &provider.Response{Text: "x", TokensUsed: 1}}

	svc := newTestChatService(users, usage, disp)
	_, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-4o",
		Prompt: "hi",
	})

	var planErr *ModelNotAllowedError
	if !errors.As(err, &planErr) {
		t.Fatalf("error = %v, want ModelNotAllowedError", err)
	}
	if planErr.CurrentPlan != catalog.TierBasic {
		t.Errorf("current plan = %q, want basic", planErr.CurrentPlan)
	}
	if planErr.RequiredPlan != catalog.TierMax {
		t.Errorf("required plan = %q, want max", planErr.RequiredPlan)
	}
	if len(disp.requests) != 0 {
		t.Errorf("dispatcher was called %d times, want 0", len(disp.requests))
	}
	if len(usage.records) != 0 {
		t.Errorf("ledger has %d records, want 0", len(usage.records))
	}
}

func TestCompleteUnknownModel(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "ultimate"},
	}}
	svc := newTestChatService(users, &fakeUsageRepo{}, &stubDispatcher{})
	_, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-99",
		Prompt: "hi",
	})
	if !errors.Is(err, provider.ErrUnsupportedModel) {
		t.Fatalf("error = %v, want ErrUnsupportedModel", err)
	}
}

func TestCompleteQuotaExhaustedRejectedWithoutDispatch(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "basic"},
	}}
	usage := &fakeUsageRepo{}
	// Fill the basic quota (100k tokens) exactly.
	if _, err := usage.Record(context.Background(), "u1", "openai/gpt-4o-mini", 100_000, 0.06, model.KindChat); err != nil {
		t.Fatal(err)
	}
	disp := &stubDispatcher{resp: &provider.Response{Text: "x", TokensUsed: 1}}

	svc := newTestChatService(users, usage, disp)
	_, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-4o-mini",
		Prompt: "hi",
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("error = %v, want ErrQuotaExceeded", err)
	}
	if len(disp.requests) != 0 {
		t.Errorf("dispatcher was called %d times, want 0", len(disp.requests))
	}
	if len(usage.records) != 1 {
		t.Errorf("ledger has %d records, want the 1 pre-existing record", len(usage.records))
	}
}

func TestCompleteProviderErrorRecordsNothing(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "basic"},
	}}
	usage := &fakeUsageRepo{}
	disp := &stubDispatcher{err: &provider.Error{
		Provider:   "openai",
		Model:      "gpt-4o-mini",
		StatusCode: 500,
		Message:    "upstream exploded",
	}}

	svc := newTestChatService(users, usage, disp)
	_, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-4o-mini",
		Prompt: "hi",
	})

	var provErr *provider.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *provider.Error", err)
	}
	if len(usage.records) != 0 {
		t.Errorf("ledger has %d records after failed dispatch, want 0", len(usage.records))
	}
}

func TestCompleteLedgerWriteFailureStillSucceeds(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "basic"},
	}}
	usage := &fakeUsageRepo{recordErr: fmt.Errorf("connection reset")}
	disp := &stubDispatcher{resp: &provider.Response{Text: "ok", TokensUsed: 10, Model: "openai/gpt-4o-mini"}}

	svc := newTestChatService(users, usage, disp)
	result, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-4o-mini",
		Prompt: "hi",
	})
	if err != nil {
		t.Fatalf("Complete returned error despite successful dispatch: %v", err)
	}
	if result.Text != "ok" {
		t.Errorf("result text = %q, want %q", result.Text, "ok")
	}
}

func TestCompleteTaskKindRecorded(t *testing.T) {
	users := &fakeUserRepo{users: map[string]*model.User{
		"u1": {UserID: "u1", Plan: "basic"},
	}}
	usage := &fakeUsageRepo{}
	disp := &stubDispatcher{resp: &provider.Response{Text: "done", TokensUsed: 42, Model: "openai/gpt-4o-mini"}}

	svc := newTestChatService(users, usage, disp)
	if _, err := svc.Complete(context.Background(), CompletionRequest{
		UserID: "u1",
		Model:  "openai/gpt-4o-mini",
		Prompt: "hi",
		Kind:   model.KindTask,
	}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if len(usage.records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(usage.records))
	}
	if usage.records[0].Kind != model.KindTask {
		t.Errorf("record kind = %q, want %q", usage.records[0].Kind, model.KindTask)
	}
}

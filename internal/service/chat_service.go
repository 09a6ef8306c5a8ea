package service

import (
	"context"
	"fmt"

	"framium/internal/catalog"
	"framium/internal/model"
	"framium/internal/provider"
	"framium/internal/repository"

	"github.com/rs/zerolog"
)

// Dispatcher routes a normalized request to a provider adapter. Satisfied
// by *provider.Router.
type Dispatcher interface {
	Route(ctx context.Context, req provider.Request) (*provider.Response, error)
}

// CompletionRequest is the orchestrator's input, already decoded and
// field-validated by the handler.
type CompletionRequest struct {
	UserID      string
	Model       string
	Prompt      string
	System      string
	Mode        string
	Kind        string
	Temperature float64
}

// CompletionResult is the successful outcome: the generated text together
// with the usage the ledger was billed for.
type CompletionResult struct {
	Text       string
	TokensUsed int64
	CostUSD    float64
	Model      string
	Mode       string
}

// ChatService is the end-to-end completion pipeline: validate user,
// authorize the model for the plan, admit against quota, dispatch, record
// usage, respond. No path records usage without a successful dispatch, and
// no success response is returned before its usage row is written (or its
// write failure logged).
type ChatService interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

type chatService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
	quota     *QuotaGuard
	router    Dispatcher
	catalog   *catalog.Catalog
	pricing   *catalog.Pricing
	models    map[string]catalog.ModelDescriptor
	logger    zerolog.Logger
}

// NewChatService wires the completion pipeline. The catalog, pricing and
// model tables are plain values built once at startup.
func NewChatService(
	userRepo repository.UserRepository,
	usageRepo repository.UsageRepository,
	quota *QuotaGuard,
	router Dispatcher,
	cat *catalog.Catalog,
	pricing *catalog.Pricing,
	models map[string]catalog.ModelDescriptor,
	logger zerolog.Logger,
) ChatService {
	return &chatService{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		quota:     quota,
		router:    router,
		catalog:   cat,
		pricing:   pricing,
		models:    models,
		logger:    logger.With().Str("service", "ChatService").Logger(),
	}
}

func (s *chatService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	user, err := s.userRepo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	tier := catalog.ParseTier(user.Plan)
	requiredTier, known := s.catalog.MinTierFor(req.Model)
	if !known {
		return nil, fmt.Errorf("%w: %q", provider.ErrUnsupportedModel, req.Model)
	}
	if !s.catalog.IsModelAllowed(tier, req.Model) {
		return nil, &ModelNotAllowedError{Model: req.Model, CurrentPlan: tier, RequiredPlan: requiredTier}
	}

	estimate := EstimateRequestTokens(req.Prompt)
	admitted, usage, err := s.quota.CanProceed(ctx, req.UserID, tier, estimate)
	if err != nil {
		return nil, err
	}
	if !admitted {
		s.logger.Info().
			Str("user_id", req.UserID).
			Str("plan", string(tier)).
			Int64("monthly_tokens", usage.TotalTokens).
			Int64("estimated_tokens", estimate).
			Msg("Request rejected by quota check")
		return nil, ErrQuotaExceeded
	}

	dispatchReq := provider.Request{
		Model:       req.Model,
		Prompt:      req.Prompt,
		System:      req.System,
		Temperature: req.Temperature,
	}
	if desc, ok := s.models[req.Model]; ok {
		dispatchReq.MaxOutputTokens = desc.MaxOutputTokens
	}
	resp, err := s.router.Route(ctx, dispatchReq)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", req.UserID).
			Str("model", req.Model).
			Msg("Provider dispatch failed")
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = model.KindChat
	}
	cost := s.pricing.Cost(req.Model, resp.TokensUsed)
	if _, err := s.usageRepo.Record(ctx, req.UserID, req.Model, resp.TokensUsed, cost, kind); err != nil {
		// Accounting anomaly: the response was already produced upstream, so
		// availability wins over billing consistency. Logged, not fatal.
		s.logger.Error().Err(err).
			Str("user_id", req.UserID).
			Str("model", req.Model).
			Int64("tokens", resp.TokensUsed).
			Float64("cost_usd", cost).
			Msg("Failed to record usage after successful dispatch")
	}

	return &CompletionResult{
		Text:       resp.Text,
		TokensUsed: resp.TokensUsed,
		CostUSD:    cost,
		Model:      resp.Model,
		Mode:       req.Mode,
	}, nil
}

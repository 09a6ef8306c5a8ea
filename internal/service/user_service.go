package service

import (
	"context"
	"fmt"
	"time"

	"framium/internal/catalog"
	"framium/internal/model"
	"framium/internal/repository"

	"github.com/rs/zerolog"
)

// UsageSummary is the account-panel view of a user's plan and
// current-month consumption.
type UsageSummary struct {
	Plan        catalog.Tier        `json:"plan"`
	QuotaTokens int64               `json:"quota_tokens"`
	Monthly     model.MonthlyUsage  `json:"monthly"`
	Recent      []model.UsageRecord `json:"recent"`
}

// UserService defines business logic methods for user profiles.
type UserService interface {
	Signup(ctx context.Context, userID, name, email, avatarURL string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, id, name, avatarURL string) (*model.User, error)
	UsageSummary(ctx context.Context, id string) (*UsageSummary, error)
}

type userService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
	catalog   *catalog.Catalog
	stripeSvc *StripeService
	logger    zerolog.Logger
	now       func() time.Time
}

// NewUserService creates a new UserService with a scoped logger. stripeSvc
// may be nil when billing is not configured.
func NewUserService(
	userRepo repository.UserRepository,
	usageRepo repository.UsageRepository,
	cat *catalog.Catalog,
	stripeSvc *StripeService,
	logger zerolog.Logger,
) UserService {
	return &userService{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		catalog:   cat,
		stripeSvc: stripeSvc,
		logger:    logger.With().Str("service", "UserService").Logger(),
		now:       time.Now,
	}
}

// Signup creates a user on the basic plan. Stripe customer creation is
// best-effort: a billing outage must not block account creation.
func (s *userService) Signup(ctx context.Context, userID, name, email, avatarURL string) (*model.User, error) {
	u := &model.User{
		UserID:    userID,
		Name:      name,
		Email:     email,
		AvatarURL: avatarURL,
		Plan:      string(catalog.TierBasic),
	}
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create user")
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if s.stripeSvc != nil {
		if _, err := s.stripeSvc.CreateCustomer(ctx, u); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to create Stripe customer at signup")
		}
	}

	return u, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id, name, avatarURL string) (*model.User, error) {
	existing, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}
	u, err := s.userRepo.UpdateProfile(ctx, id, name, avatarURL)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Failed to update profile")
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return u, nil
}

func (s *userService) UsageSummary(ctx context.Context, id string) (*UsageSummary, error) {
	u, err := s.userRepo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	tier := catalog.ParseTier(u.Plan)
	monthly, err := s.usageRepo.MonthlyUsage(ctx, id, startOfMonthUTC(s.now()))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Failed to aggregate monthly usage")
		return nil, fmt.Errorf("aggregating monthly usage: %w", err)
	}
	recent, err := s.usageRepo.ListRecent(ctx, id, 20)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id).Msg("Failed to list recent usage")
		return nil, fmt.Errorf("listing recent usage: %w", err)
	}

	return &UsageSummary{
		Plan:        tier,
		QuotaTokens: s.catalog.QuotaTokens(tier),
		Monthly:     monthly,
		Recent:      recent,
	}, nil
}

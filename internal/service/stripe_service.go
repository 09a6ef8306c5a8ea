package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"framium/internal/catalog"
	"framium/internal/config"
	"framium/internal/model"
	"framium/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeService manages Stripe integration. Paid tiers map 1:1 to Stripe
// prices; webhook events are the only writer of user_profiles.plan.
type StripeService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
	logger   zerolog.Logger
}

// NewStripeService initializes the Stripe key and returns the service with
// a scoped logger.
func NewStripeService(cfg *config.Config, userRepo repository.UserRepository, logger zerolog.Logger) *StripeService {
	stripe.Key = cfg.StripeSecretKey
	return &StripeService{
		cfg:      cfg,
		userRepo: userRepo,
		logger:   logger.With().Str("service", "StripeService").Logger(),
	}
}

// priceIDForTier maps a paid tier to its configured Stripe price.
func (s *StripeService) priceIDForTier(tier catalog.Tier) (string, error) {
	switch tier {
	case catalog.TierMax:
		return s.cfg.StripePriceMax, nil
	case catalog.TierBeast:
		return s.cfg.StripePriceBeast, nil
	case catalog.TierUltimate:
		return s.cfg.StripePriceUltimate, nil
	default:
		return "", fmt.Errorf("no Stripe price for plan %q", tier)
	}
}

// tierForPriceID is the inverse mapping, used when consuming webhooks.
func (s *StripeService) tierForPriceID(priceID string) (catalog.Tier, bool) {
	switch priceID {
	case s.cfg.StripePriceMax:
		return catalog.TierMax, priceID != ""
	case s.cfg.StripePriceBeast:
		return catalog.TierBeast, priceID != ""
	case s.cfg.StripePriceUltimate:
		return catalog.TierUltimate, priceID != ""
	default:
		return catalog.TierBasic, false
	}
}

// getUserIDFromEvent resolves the user from webhook metadata, falling back
// to a customer-id lookup.
func (s *StripeService) getUserIDFromEvent(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", errors.New("cannot determine user: missing metadata and customer id")
	}
	s.logger.Warn().Str("stripe_customer_id", customerID).Msg("Missing user_id metadata; looking up user by customer ID")
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("looking up user by Stripe customer ID: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("no user found for customer ID: %s", customerID)
	}
	return u.UserID, nil
}

// CreateCustomer creates a new Stripe customer for a user and stores the
// id on the profile.
func (s *StripeService) CreateCustomer(ctx context.Context, user *model.User) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Name:     stripe.String(user.Name),
		Metadata: map[string]string{"user_id": user.UserID},
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.UserID, cust.ID); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// GetOrCreateCustomer ensures a Stripe customer exists for a user.
// Customers are normally created at signup; this covers legacy users.
func (s *StripeService) GetOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	s.logger.Warn().Str("user_id", user.UserID).Msg("No Stripe customer ID found, creating customer as fallback")
	return s.CreateCustomer(ctx, user)
}

// CreateCheckoutSession creates a Stripe Checkout session for upgrading to
// a paid tier.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, userID, plan string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("user not found: %s", userID)
	}
	customerID, err := s.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	priceID, err := s.priceIDForTier(catalog.ParseTier(plan))
	if err != nil {
		return "", err
	}
	sessParams := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(priceID), Quantity: stripe.Int64(1)}},
		Mode:               stripe.String(stripe.CheckoutSessionModeSubscription),
		SuccessURL:         stripe.String(s.cfg.StripePortalReturnURL + "?status=success"),
		CancelURL:          stripe.String(s.cfg.StripePortalReturnURL + "?status=cancel"),
		Metadata:           map[string]string{"user_id": userID},
	}
	sess, err := checkoutsession.New(sessParams)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Msg("Failed to create Stripe checkout session")
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (s *StripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return "", fmt.Errorf("no stripe customer for user: %s", userID)
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*user.StripeCustomerID),
		ReturnURL: stripe.String(s.cfg.StripePortalReturnURL),
	}
	sess, err := billingsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook processes Stripe webhook events and applies the resulting
// plan changes.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		return
	}
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session data")
			http.Error(w, "invalid checkout.session data", http.StatusBadRequest)
			return
		}
		if cs.Subscription == nil {
			s.logger.Info().Str("session_id", cs.ID).Msg("Checkout session has no subscription, skipping")
			w.WriteHeader(http.StatusOK)
			return
		}
		subObj, err := subscriptionpkg.Get(cs.Subscription.ID, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", cs.Subscription.ID).Msg("Failed to fetch subscription details")
			http.Error(w, "failed to fetch subscription details", http.StatusInternalServerError)
			return
		}
		userID := cs.Metadata["user_id"]
		if userID == "" {
			s.logger.Error().Str("subscription_id", cs.Subscription.ID).Msg("Missing user_id in checkout session metadata")
			http.Error(w, "missing user_id in metadata", http.StatusBadRequest)
			return
		}
		if err := s.applySubscriptionPlan(ctx, userID, subObj); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply plan on checkout.session.completed")
			http.Error(w, "failed to apply plan", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.updated payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		userID, err := s.getUserIDFromEvent(ctx, sub.Metadata, customerID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to determine user from subscription")
			http.Error(w, "failed to identify user", http.StatusInternalServerError)
			return
		}
		if err := s.applySubscriptionPlan(ctx, userID, &sub); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply plan on subscription update")
			http.Error(w, "failed to apply plan", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			http.Error(w, "invalid subscription data", http.StatusBadRequest)
			return
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		userID, err := s.getUserIDFromEvent(ctx, sub.Metadata, customerID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to determine user from deleted subscription")
			http.Error(w, "failed to identify user", http.StatusInternalServerError)
			return
		}
		if err := s.userRepo.UpdatePlan(ctx, userID, string(catalog.TierBasic)); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade user to basic plan")
			http.Error(w, "failed to downgrade plan", http.StatusInternalServerError)
			return
		}
		s.logger.Info().Str("user_id", userID).Msg("User downgraded to basic plan")

	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Unhandled Stripe event type")
	}

	w.WriteHeader(http.StatusOK)
}

// applySubscriptionPlan derives the tier from the subscription's first
// price and writes it to the user profile.
func (s *StripeService) applySubscriptionPlan(ctx context.Context, userID string, sub *stripe.Subscription) error {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return fmt.Errorf("subscription %s has no price", sub.ID)
	}
	priceID := sub.Items.Data[0].Price.ID
	tier, ok := s.tierForPriceID(priceID)
	if !ok {
		return fmt.Errorf("unrecognized price id %q on subscription %s", priceID, sub.ID)
	}
	if err := s.userRepo.UpdatePlan(ctx, userID, string(tier)); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Str("plan", string(tier)).Msg("User plan updated from Stripe subscription")
	return nil
}

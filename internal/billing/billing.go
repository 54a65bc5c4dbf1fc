// Package billing sells plans through Stripe Checkout and keeps each
// user's plan in step with Stripe subscription webhooks.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/config"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const providerStripe = "stripe"

var (
	ErrNotConfigured    = errors.New("billing is not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrUnknownPlan      = errors.New("unknown plan")
	ErrNoCustomer       = errors.New("no billing account")
)

type Config struct {
	SecretKey       string
	WebhookSecret   string
	Prices          map[string]string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

// LoadConfig reads STRIPE_* and APP_URL variables.
func LoadConfig() Config {
	appURL := config.GetEnv("APP_URL", "http://localhost:3000")
	return Config{
		SecretKey:     config.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: config.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		Prices: map[string]string{
			users.PlanPro:      config.GetEnv("STRIPE_PRICE_PRO", ""),
			users.PlanBusiness: config.GetEnv("STRIPE_PRICE_BUSINESS", ""),
		},
		SuccessURL:      config.GetEnv("STRIPE_SUCCESS_URL", appURL+"/billing?status=success"),
		CancelURL:       config.GetEnv("STRIPE_CANCEL_URL", appURL+"/billing?status=cancelled"),
		PortalReturnURL: config.GetEnv("STRIPE_PORTAL_RETURN_URL", appURL+"/billing"),
	}
}

// Accounts is the user persistence billing reads and writes.
type Accounts interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
	ApplySubscription(ctx context.Context, upd users.SubscriptionUpdate) error
}

// Subscription is the caller's billing state.
type Subscription struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
	HasBilling       bool       `json:"has_billing_account"`
}

type Service struct {
	cfg      Config
	api      StripeAPI
	accounts Accounts
	ledger   Ledger
	logger   logging.Logger
}

func NewService(cfg Config, api StripeAPI, accounts Accounts, ledger Ledger, logger logging.Logger) *Service {
	return &Service{cfg: cfg, api: api, accounts: accounts, ledger: ledger, logger: logger}
}

func (s *Service) configured() bool {
	return s.api != nil && s.cfg.SecretKey != ""
}

// Checkout returns a Stripe Checkout URL for upgrading to plan, creating
// the Stripe customer on first use.
func (s *Service) Checkout(ctx context.Context, userID, plan string) (string, error) {
	if !s.configured() {
		return "", ErrNotConfigured
	}
	priceID := s.cfg.Prices[plan]
	if priceID == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}

	u, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID := u.StripeCustomerID
	if customerID == "" {
		customerID, err = s.api.CreateCustomer(ctx, u.Email, u.ID)
		if err != nil {
			return "", fmt.Errorf("create stripe customer: %w", err)
		}
		if err := s.accounts.SetStripeCustomer(ctx, u.ID, customerID); err != nil {
			return "", err
		}
	}

	url, err := s.api.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: customerID,
		UserID:     u.ID,
		Plan:       plan,
		PriceID:    priceID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return url, nil
}

// Portal returns a billing-portal URL for a user with a Stripe customer.
func (s *Service) Portal(ctx context.Context, userID string) (string, error) {
	if !s.configured() {
		return "", ErrNotConfigured
	}
	u, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	url, err := s.api.CreatePortalSession(ctx, u.StripeCustomerID, s.cfg.PortalReturnURL)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}

func (s *Service) Subscription(ctx context.Context, userID string) (*Subscription, error) {
	u, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		Plan:             u.Plan,
		Status:           u.SubscriptionStatus,
		CurrentPeriodEnd: u.CurrentPeriodEnd,
		HasBilling:       u.StripeCustomerID != "",
	}, nil
}

type checkoutSessionObject struct {
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
	Metadata          struct {
		UserID string `json:"user_id"`
		Plan   string `json:"plan"`
	} `json:"metadata"`
}

type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
	Items    struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata struct {
		Plan string `json:"plan"`
	} `json:"metadata"`
}

// HandleWebhook verifies and applies one Stripe delivery. Already
// processed event IDs are acknowledged without side effects; the bool
// reports whether the event was a duplicate.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	if s.cfg.WebhookSecret == "" {
		return false, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if evt.Data == nil {
		return false, ErrInvalidPayload
	}

	seen, err := s.ledger.Seen(ctx, providerStripe, evt.ID)
	if err != nil {
		return false, err
	}
	if seen {
		s.logger.WithField("event_id", evt.ID).Debug("Stripe webhook already processed, skipping")
		return true, nil
	}

	eventType := string(evt.Type)
	switch eventType {
	case "checkout.session.completed":
		err = s.applyCheckout(ctx, evt.Data.Raw)
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.applySubscription(ctx, evt.Data.Raw, false)
	case "customer.subscription.deleted":
		err = s.applySubscription(ctx, evt.Data.Raw, true)
	default:
		s.logger.WithField("event_type", eventType).Debug("Ignoring unhandled Stripe event type")
	}
	if err != nil {
		return false, err
	}

	if err := s.ledger.Mark(ctx, providerStripe, evt.ID, eventType); err != nil {
		return false, err
	}
	s.logger.WithFields(logging.Fields{
		"event_id":   evt.ID,
		"event_type": eventType,
	}).Info("Processed Stripe webhook")
	return false, nil
}

func (s *Service) applyCheckout(ctx context.Context, raw json.RawMessage) error {
	var obj checkoutSessionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if obj.Customer == "" {
		return fmt.Errorf("%w: checkout session has no customer", ErrInvalidPayload)
	}

	userID := obj.ClientReferenceID
	if userID == "" {
		userID = obj.Metadata.UserID
	}
	if userID != "" {
		if err := s.accounts.SetStripeCustomer(ctx, userID, obj.Customer); err != nil {
			return err
		}
	}

	plan := obj.Metadata.Plan
	if _, ok := s.cfg.Prices[plan]; !ok {
		plan = ""
	}
	return s.apply(ctx, users.SubscriptionUpdate{
		CustomerID:     obj.Customer,
		SubscriptionID: obj.Subscription,
		Status:         "active",
		Plan:           plan,
	})
}

func (s *Service) applySubscription(ctx context.Context, raw json.RawMessage, deleted bool) error {
	var obj subscriptionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	upd := users.SubscriptionUpdate{
		CustomerID:     obj.Customer,
		SubscriptionID: obj.ID,
		Status:         obj.Status,
	}
	var priceID string
	if len(obj.Items.Data) > 0 {
		item := obj.Items.Data[0]
		priceID = item.Price.ID
		if item.CurrentPeriodEnd > 0 {
			t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			upd.CurrentPeriodEnd = &t
		}
	}

	switch {
	case deleted:
		upd.Plan = users.PlanFree
		upd.Status = "canceled"
	default:
		upd.Plan = PlanForStatus(obj.Status, s.planForPrice(priceID, obj.Metadata.Plan))
	}
	return s.apply(ctx, upd)
}

func (s *Service) apply(ctx context.Context, upd users.SubscriptionUpdate) error {
	err := s.accounts.ApplySubscription(ctx, upd)
	if errors.Is(err, users.ErrNotFound) {
		s.logger.WithField("customer_id", upd.CustomerID).Warn("No user found for Stripe customer")
		return nil
	}
	return err
}

func (s *Service) planForPrice(priceID, fallback string) string {
	for plan, id := range s.cfg.Prices {
		if id != "" && id == priceID {
			return plan
		}
	}
	if _, ok := s.cfg.Prices[fallback]; ok {
		return fallback
	}
	return ""
}

// PlanForStatus maps a Stripe subscription status to the plan the user
// should hold. An empty result leaves the plan unchanged.
func PlanForStatus(status, paidPlan string) string {
	switch status {
	case "active", "trialing":
		return paidPlan
	case "canceled", "unpaid", "incomplete_expired":
		return users.PlanFree
	default:
		return ""
	}
}

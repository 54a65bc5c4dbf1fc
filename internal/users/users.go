// Package users owns accounts, their plan and their LinkedIn connection.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/that-cod/reepost-ai-sub001/pkg/crypto"
)

const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// User is an account row. Secrets are never serialised.
type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	Plan                 string     `json:"plan"`
	PasswordHash         string     `json:"-"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	SubscriptionStatus   string     `json:"subscription_status,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	LinkedInConnected    bool       `json:"linkedin_connected"`
	CreatedAt            time.Time  `json:"created_at"`
}

// LinkedInCredentials is what the publisher needs to post on a member's
// behalf.
type LinkedInCredentials struct {
	MemberURN   string
	AccessToken string
	ExpiresAt   *time.Time
}

// Usable reports whether the token is present and not expired at now.
func (c LinkedInCredentials) Usable(now time.Time) bool {
	if c.AccessToken == "" || c.MemberURN == "" {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// SubscriptionUpdate is the billing state written from Stripe events.
type SubscriptionUpdate struct {
	CustomerID       string
	SubscriptionID   string
	Status           string
	Plan             string
	CurrentPeriodEnd *time.Time
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Store struct {
	db     *sql.DB
	tokens *crypto.TokenCipher
	now    func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithTokenCipher seals LinkedIn access tokens at rest. Without it they
// are stored as given.
func (s *Store) WithTokenCipher(c *crypto.TokenCipher) *Store {
	s.tokens = c
	return s
}

const selectUser = `
	SELECT id, email, name, plan, password_hash,
		COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		COALESCE(subscription_status, ''), current_period_end,
		linkedin_access_token IS NOT NULL, created_at
	FROM users`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var (
		u         User
		periodEnd sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Plan, &u.PasswordHash,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.SubscriptionStatus,
		&periodEnd, &u.LinkedInConnected, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		u.CurrentPeriodEnd = &t
	}
	return &u, nil
}

// Create inserts a free-plan user.
func (s *Store) Create(ctx context.Context, email, passwordHash, name string) (*User, error) {
	u := &User{
		ID:        uuid.New().String(),
		Email:     NormalizeEmail(email),
		Name:      strings.TrimSpace(name),
		Plan:      PlanFree,
		CreatedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, u.ID, u.Email, passwordHash, u.Name, u.Plan, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.PasswordHash = passwordHash
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, NormalizeEmail(email)))
}

// LinkedInCredentials returns the stored connection, empty when the
// user never connected.
func (s *Store) LinkedInCredentials(ctx context.Context, userID string) (LinkedInCredentials, error) {
	var (
		creds     LinkedInCredentials
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(linkedin_member_urn, ''), COALESCE(linkedin_access_token, ''), linkedin_token_expires_at
		FROM users WHERE id = $1
	`, userID).Scan(&creds.MemberURN, &creds.AccessToken, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LinkedInCredentials{}, ErrNotFound
	}
	if err != nil {
		return LinkedInCredentials{}, fmt.Errorf("load linkedin credentials: %w", err)
	}
	if creds.AccessToken, err = s.tokens.Open(creds.AccessToken); err != nil {
		return LinkedInCredentials{}, fmt.Errorf("open linkedin token: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		creds.ExpiresAt = &t
	}
	return creds, nil
}

// LinkedInToken returns the access token, or "" when missing or expired.
func (s *Store) LinkedInToken(ctx context.Context, userID string) (string, error) {
	creds, err := s.LinkedInCredentials(ctx, userID)
	if err != nil {
		return "", err
	}
	if !creds.Usable(s.now()) {
		return "", nil
	}
	return creds.AccessToken, nil
}

func (s *Store) SetLinkedIn(ctx context.Context, userID string, creds LinkedInCredentials) error {
	sealed, err := s.tokens.Seal(creds.AccessToken)
	if err != nil {
		return fmt.Errorf("seal linkedin token: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			linkedin_member_urn = $2,
			linkedin_access_token = $3,
			linkedin_token_expires_at = $4,
			updated_at = NOW()
		WHERE id = $1
	`, userID, creds.MemberURN, sealed, creds.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save linkedin connection: %w", err)
	}
	return requireRow(res)
}

func (s *Store) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1
	`, userID, customerID)
	if err != nil {
		return fmt.Errorf("save stripe customer: %w", err)
	}
	return requireRow(res)
}

// ApplySubscription writes billing state for the user owning the Stripe
// customer. An empty Plan leaves the plan unchanged.
func (s *Store) ApplySubscription(ctx context.Context, upd SubscriptionUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			stripe_subscription_id = NULLIF($2, ''),
			subscription_status = NULLIF($3, ''),
			plan = COALESCE(NULLIF($4, ''), plan),
			current_period_end = $5,
			updated_at = NOW()
		WHERE stripe_customer_id = $1
	`, upd.CustomerID, upd.SubscriptionID, upd.Status, upd.Plan, upd.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("apply subscription: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package users

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/pkg/crypto"
)

var userColumns = []string{
	"id", "email", "name", "plan", "password_hash",
	"stripe_customer_id", "stripe_subscription_id", "subscription_status",
	"current_period_end", "linkedin_connected", "created_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestCreateNormalizesEmail(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "hash", "Ada", PlanFree, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := store.Create(context.Background(), "  Ada@Example.com ", "hash", " Ada ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, PlanFree, u.Plan)
	assert.NotEmpty(t, u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.Create(context.Background(), "ada@example.com", "hash", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u1", "ada@example.com", "Ada", PlanPro, "hash", "cus_1", "sub_1", "active", nil, true, created))

	u, err := store.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", u.StripeCustomerID)
	assert.True(t, u.LinkedInConnected)
	assert.Nil(t, u.CurrentPeriodEnd)
}

func TestGetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM users WHERE id = \\$1").WillReturnError(sql.ErrNoRows)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLinkedInTokenHonoursExpiry(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	mock.ExpectQuery("linkedin_token_expires_at").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"urn", "token", "expires"}).AddRow("urn:li:person:1", "tok", now.Add(time.Hour)))
	token, err := store.LinkedInToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	mock.ExpectQuery("linkedin_token_expires_at").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"urn", "token", "expires"}).AddRow("urn:li:person:1", "tok", now.Add(-time.Hour)))
	token, err = store.LinkedInToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestApplySubscriptionUnknownCustomer(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("WHERE stripe_customer_id = \\$1").
		WithArgs("cus_x", "sub_1", "active", PlanPro, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.ApplySubscription(context.Background(), SubscriptionUpdate{
		CustomerID: "cus_x", SubscriptionID: "sub_1", Status: "active", Plan: PlanPro,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetLinkedIn(t *testing.T) {
	store, mock := newMockStore(t)
	expires := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("SET\\s+linkedin_member_urn = \\$2").
		WithArgs("u1", "urn:li:person:1", "tok", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetLinkedIn(context.Background(), "u1", LinkedInCredentials{
		MemberURN: "urn:li:person:1", AccessToken: "tok", ExpiresAt: &expires,
	})
	require.NoError(t, err)
}

// sealedToken captures the value written for the access token column.
type sealedToken struct{ value string }

func (s *sealedToken) Match(v driver.Value) bool {
	str, ok := v.(string)
	if !ok || !crypto.IsSealed(str) {
		return false
	}
	s.value = str
	return true
}

func TestLinkedInTokenSealedAtRest(t *testing.T) {
	store, mock := newMockStore(t)
	cipher, err := crypto.NewTokenCipher([]byte("unit-test-secret"), "linkedin-access-token")
	require.NoError(t, err)
	store.WithTokenCipher(cipher)

	captured := &sealedToken{}
	mock.ExpectExec("SET\\s+linkedin_member_urn = \\$2").
		WithArgs("u1", "urn:li:person:1", captured, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetLinkedIn(context.Background(), "u1", LinkedInCredentials{
		MemberURN: "urn:li:person:1", AccessToken: "plain-token",
	}))
	require.NotEmpty(t, captured.value)

	mock.ExpectQuery("SELECT COALESCE\\(linkedin_member_urn").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"urn", "token", "expires"}).
			AddRow("urn:li:person:1", captured.value, nil))

	creds, err := store.LinkedInCredentials(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "plain-token", creds.AccessToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

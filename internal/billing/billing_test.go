package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/users"
)

const webhookSecret = "whsec_test"

type stripeStub struct {
	customers int
	checkout  CheckoutSessionRequest
	err       error
}

func (s *stripeStub) CreateCustomer(context.Context, string, string) (string, error) {
	s.customers++
	return "cus_new", s.err
}

func (s *stripeStub) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (string, error) {
	s.checkout = req
	return "https://checkout.stripe.test/s", s.err
}

func (s *stripeStub) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/" + customerID, s.err
}

type accountsStub struct {
	user      *users.User
	customers map[string]string
	updates   []users.SubscriptionUpdate
	applyErr  error
}

func (a *accountsStub) GetByID(_ context.Context, id string) (*users.User, error) {
	if a.user == nil || a.user.ID != id {
		return nil, users.ErrNotFound
	}
	u := *a.user
	return &u, nil
}

func (a *accountsStub) SetStripeCustomer(_ context.Context, userID, customerID string) error {
	if a.customers == nil {
		a.customers = map[string]string{}
	}
	a.customers[userID] = customerID
	return nil
}

func (a *accountsStub) ApplySubscription(_ context.Context, upd users.SubscriptionUpdate) error {
	a.updates = append(a.updates, upd)
	return a.applyErr
}

type memoryLedger struct {
	seen map[string]bool
}

func (l *memoryLedger) Seen(_ context.Context, provider, id string) (bool, error) {
	return l.seen[provider+":"+id], nil
}

func (l *memoryLedger) Mark(_ context.Context, provider, id, _ string) error {
	l.seen[provider+":"+id] = true
	return nil
}

func testConfig() Config {
	return Config{
		SecretKey:     "sk_test",
		WebhookSecret: webhookSecret,
		Prices: map[string]string{
			users.PlanPro:      "price_pro",
			users.PlanBusiness: "price_biz",
		},
		SuccessURL:      "https://app/success",
		CancelURL:       "https://app/cancel",
		PortalReturnURL: "https://app/billing",
	}
}

func newTestService(api StripeAPI, accounts *accountsStub) (*Service, *memoryLedger) {
	logger, _ := test.NewNullLogger()
	ledger := &memoryLedger{seen: map[string]bool{}}
	return NewService(testConfig(), api, accounts, ledger, logger), ledger
}

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func event(id, typ, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, typ, object))
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	api := &stripeStub{}
	accounts := &accountsStub{user: &users.User{ID: "u1", Email: "a@b.co", Plan: users.PlanFree}}
	svc, _ := newTestService(api, accounts)

	url, err := svc.Checkout(context.Background(), "u1", users.PlanPro)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/s", url)
	assert.Equal(t, 1, api.customers)
	assert.Equal(t, "cus_new", accounts.customers["u1"])
	assert.Equal(t, "price_pro", api.checkout.PriceID)
	assert.Equal(t, "cus_new", api.checkout.CustomerID)

	accounts.user.StripeCustomerID = "cus_existing"
	_, err = svc.Checkout(context.Background(), "u1", users.PlanBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, api.customers)
	assert.Equal(t, "cus_existing", api.checkout.CustomerID)
}

func TestCheckoutRejectsUnknownPlan(t *testing.T) {
	svc, _ := newTestService(&stripeStub{}, &accountsStub{user: &users.User{ID: "u1"}})
	_, err := svc.Checkout(context.Background(), "u1", users.PlanFree)
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCheckoutNotConfigured(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := NewService(Config{}, nil, &accountsStub{}, &memoryLedger{}, logger)
	_, err := svc.Checkout(context.Background(), "u1", users.PlanPro)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPortalRequiresCustomer(t *testing.T) {
	accounts := &accountsStub{user: &users.User{ID: "u1"}}
	svc, _ := newTestService(&stripeStub{}, accounts)

	_, err := svc.Portal(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoCustomer)

	accounts.user.StripeCustomerID = "cus_1"
	url, err := svc.Portal(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.test/cus_1", url)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _ := newTestService(&stripeStub{}, &accountsStub{})
	payload := event("evt_1", "checkout.session.completed", `{"customer":"cus_1"}`)

	_, err := svc.HandleWebhook(context.Background(), payload, sign(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = svc.HandleWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhookCheckoutCompletedIsIdempotent(t *testing.T) {
	accounts := &accountsStub{}
	svc, _ := newTestService(&stripeStub{}, accounts)
	payload := event("evt_1", "checkout.session.completed",
		`{"customer":"cus_1","subscription":"sub_1","client_reference_id":"u1","metadata":{"plan":"pro"}}`)

	dup, err := svc.HandleWebhook(context.Background(), payload, sign(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	assert.False(t, dup)
	require.Len(t, accounts.updates, 1)
	assert.Equal(t, users.SubscriptionUpdate{
		CustomerID: "cus_1", SubscriptionID: "sub_1", Status: "active", Plan: users.PlanPro,
	}, accounts.updates[0])
	assert.Equal(t, "cus_1", accounts.customers["u1"])

	dup, err = svc.HandleWebhook(context.Background(), payload, sign(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Len(t, accounts.updates, 1)
}

func TestWebhookSubscriptionUpdated(t *testing.T) {
	accounts := &accountsStub{}
	svc, _ := newTestService(&stripeStub{}, accounts)
	payload := event("evt_2", "customer.subscription.updated",
		`{"id":"sub_1","customer":"cus_1","status":"active","items":{"data":[{"current_period_end":1798761600,"price":{"id":"price_biz"}}]}}`)

	_, err := svc.HandleWebhook(context.Background(), payload, sign(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	require.Len(t, accounts.updates, 1)
	upd := accounts.updates[0]
	assert.Equal(t, users.PlanBusiness, upd.Plan)
	require.NotNil(t, upd.CurrentPeriodEnd)
	assert.Equal(t, int64(1798761600), upd.CurrentPeriodEnd.Unix())
}

func TestWebhookSubscriptionDeletedDowngrades(t *testing.T) {
	accounts := &accountsStub{applyErr: users.ErrNotFound}
	svc, ledger := newTestService(&stripeStub{}, accounts)
	payload := event("evt_3", "customer.subscription.deleted", `{"id":"sub_1","customer":"cus_gone","status":"canceled"}`)

	_, err := svc.HandleWebhook(context.Background(), payload, sign(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, users.PlanFree, accounts.updates[0].Plan)
	assert.True(t, ledger.seen["stripe:evt_3"])
}

func TestWebhookStoreErrorIsNotMarked(t *testing.T) {
	accounts := &accountsStub{applyErr: errors.New("db down")}
	svc, ledger := newTestService(&stripeStub{}, accounts)
	payload := event("evt_4", "customer.subscription.updated", `{"id":"sub_1","customer":"cus_1","status":"past_due"}`)

	_, err := svc.HandleWebhook(context.Background(), payload, sign(payload, webhookSecret, time.Now()))
	require.Error(t, err)
	assert.False(t, ledger.seen["stripe:evt_4"])
	assert.Empty(t, accounts.updates[0].Plan)
}

func TestPlanForStatus(t *testing.T) {
	assert.Equal(t, users.PlanPro, PlanForStatus("trialing", users.PlanPro))
	assert.Equal(t, users.PlanFree, PlanForStatus("unpaid", users.PlanPro))
	assert.Empty(t, PlanForStatus("past_due", users.PlanPro))
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/analytics"
	"github.com/that-cod/reepost-ai-sub001/internal/billing"
	"github.com/that-cod/reepost-ai-sub001/internal/linkedin"
	"github.com/that-cod/reepost-ai-sub001/internal/media"
	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/internal/quota"
	"github.com/that-cod/reepost-ai-sub001/internal/scheduler"
	"github.com/that-cod/reepost-ai-sub001/internal/search"
	"github.com/that-cod/reepost-ai-sub001/internal/trending"
	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
	"github.com/that-cod/reepost-ai-sub001/pkg/testutil"
)

const testServiceToken = "svc-token"

// --- stubs ---

type accountsStub struct {
	user     *users.User
	err      error
	loginErr error
}

func (s *accountsStub) Register(ctx context.Context, email, password, name string) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.User{ID: "new-user", Email: email, Name: name, Plan: users.PlanFree}, nil
}

func (s *accountsStub) Login(ctx context.Context, email, password string) (*users.User, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.user, nil
}

func (s *accountsStub) Get(ctx context.Context, id string) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type postsStub struct {
	post       *posts.Post
	list       []posts.Post
	total      int
	err        error
	created    []posts.CreateInput
	listStatus string
	listPage   pagination.Page
	deleted    string
}

func (s *postsStub) Create(ctx context.Context, userID string, in posts.CreateInput) (*posts.Post, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, in)
	return &posts.Post{ID: "p-new", UserID: userID, Content: in.Content, Status: posts.StatusDraft}, nil
}

func (s *postsStub) Get(ctx context.Context, userID, id string) (*posts.Post, error) {
	return s.post, s.err
}

func (s *postsStub) List(ctx context.Context, userID, status string, page pagination.Page) ([]posts.Post, int, error) {
	s.listStatus = status
	s.listPage = page
	return s.list, s.total, s.err
}

func (s *postsStub) Update(ctx context.Context, userID, id string, in posts.UpdateInput) (*posts.Post, error) {
	return s.post, s.err
}

func (s *postsStub) Delete(ctx context.Context, userID, id string) error {
	s.deleted = id
	return s.err
}

func (s *postsStub) Publish(ctx context.Context, userID, id string) (*posts.Post, error) {
	return s.post, s.err
}

type generatorStub struct {
	content string
	err     error
	calls   int
}

func (s *generatorStub) Generate(ctx context.Context, req posts.GenerateRequest) (string, error) {
	s.calls++
	return s.content, s.err
}

type quotaStub struct {
	err   error
	plans []string
}

func (s *quotaStub) Consume(ctx context.Context, userID, plan, action string) (quota.Usage, error) {
	s.plans = append(s.plans, plan)
	if s.err != nil {
		return quota.Usage{}, s.err
	}
	return quota.Usage{Used: 1, Limit: 5, Remaining: 4}, nil
}

type analyticsStub struct {
	summary *analytics.Summary
	err     error
	query   analytics.Query
	sync    analytics.SyncResult
	syncErr error
}

func (s *analyticsStub) Summary(ctx context.Context, userID string, q analytics.Query) (*analytics.Summary, error) {
	s.query = q
	return s.summary, s.err
}

func (s *analyticsStub) Sync(ctx context.Context, userID string) (analytics.SyncResult, error) {
	return s.sync, s.syncErr
}

type trendingStub struct {
	feed      *trending.Feed
	err       error
	timeframe string
}

func (s *trendingStub) Feed(ctx context.Context, userID, timeframe string, page pagination.Page) (*trending.Feed, error) {
	s.timeframe = timeframe
	return s.feed, s.err
}

type searchStub struct {
	resp *search.Response
	err  error
	req  search.Request
}

func (s *searchStub) Search(ctx context.Context, userID string, req search.Request) (*search.Response, error) {
	s.req = req
	if _, err := req.Validate(); err != nil {
		return nil, err
	}
	return s.resp, s.err
}

type billingStub struct {
	url        string
	err        error
	sub        *billing.Subscription
	webhookErr error
	duplicate  bool
	signature  string
	payload    []byte
}

func (s *billingStub) Checkout(ctx context.Context, userID, plan string) (string, error) {
	return s.url, s.err
}

func (s *billingStub) Portal(ctx context.Context, userID string) (string, error) {
	return s.url, s.err
}

func (s *billingStub) Subscription(ctx context.Context, userID string) (*billing.Subscription, error) {
	return s.sub, s.err
}

func (s *billingStub) HandleWebhook(ctx context.Context, payload []byte, signature string) (bool, error) {
	s.payload = payload
	s.signature = signature
	return s.duplicate, s.webhookErr
}

type oauthStub struct {
	exchangeErr error
	member      linkedin.Member
	state       string
}

func (s *oauthStub) AuthURL(state string) (string, error) {
	s.state = state
	return "https://linkedin.test/authorization?state=" + state, nil
}

func (s *oauthStub) ExchangeCode(ctx context.Context, code string) (linkedin.Token, error) {
	if s.exchangeErr != nil {
		return linkedin.Token{}, s.exchangeErr
	}
	return linkedin.Token{AccessToken: "li-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *oauthStub) UserInfo(ctx context.Context, accessToken string) (linkedin.Member, error) {
	return s.member, nil
}

type linkedInAccountsStub struct {
	userID string
	creds  users.LinkedInCredentials
}

func (s *linkedInAccountsStub) SetLinkedIn(ctx context.Context, userID string, creds users.LinkedInCredentials) error {
	s.userID = userID
	s.creds = creds
	return nil
}

type uploaderStub struct {
	err      error
	body     []byte
	declared string
}

func (s *uploaderStub) Upload(ctx context.Context, userID string, r io.Reader, declaredType string) (*media.Upload, error) {
	if s.err != nil {
		return nil, s.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.body = body
	s.declared = declaredType
	return &media.Upload{Key: userID + "/x.png", URL: "https://cdn.test/x.png", ContentType: "image/png", Size: int64(len(body))}, nil
}

type runnerStub struct {
	result  scheduler.Result
	trigger string
}

func (s *runnerStub) RunOnce(ctx context.Context, trigger string) (scheduler.Result, error) {
	s.trigger = trigger
	return s.result, nil
}

// --- harness ---

type harness struct {
	router    *gin.Engine
	jwt       *testutil.JWTTestHelper
	user      testutil.TestUser
	accounts  *accountsStub
	posts     *postsStub
	generator *generatorStub
	quota     *quotaStub
	analytics *analyticsStub
	trending  *trendingStub
	search    *searchStub
	billing   *billingStub
	oauth     *oauthStub
	linked    *linkedInAccountsStub
	uploader  *uploaderStub
	runner    *runnerStub
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	h := &harness{
		jwt:       testutil.NewJWTTestHelper(),
		user:      testutil.DefaultTestUser(),
		accounts:  &accountsStub{},
		posts:     &postsStub{},
		generator: &generatorStub{content: "Generated post"},
		quota:     &quotaStub{},
		analytics: &analyticsStub{},
		trending:  &trendingStub{},
		search:    &searchStub{},
		billing:   &billingStub{},
		oauth:     &oauthStub{member: linkedin.Member{URN: "urn:li:person:abc"}},
		linked:    &linkedInAccountsStub{},
		uploader:  &uploaderStub{},
		runner:    &runnerStub{},
		now:       time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC),
	}
	h.accounts.user = &users.User{ID: h.user.UserID, Email: h.user.Email, Plan: users.PlanPro}

	analyticsHandler := NewAnalyticsHandler(h.analytics, h.analytics, logger, nil)
	analyticsHandler.now = func() time.Time { return h.now }

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:      NewAuthHandler(h.accounts, h.jwt.Secret, time.Hour, false, logger),
		Posts:     NewPostsHandler(h.posts, h.generator, h.quota, h.accounts, logger, nil),
		Analytics: analyticsHandler,
		Trending:  NewTrendingHandler(h.trending, logger),
		Search:    NewSearchHandler(h.search, logger, nil),
		Billing:   NewBillingHandler(h.billing, logger, nil),
		LinkedIn:  NewLinkedInHandler(h.oauth, h.linked, h.jwt.Secret, "", logger),
		Media:     NewMediaHandler(h.uploader, logger),
		Cron:      NewCronHandler(h.runner, logger),
	}, h.jwt.Secret, testServiceToken)
	h.router = router
	return h
}

// do sends an authenticated request; body may be nil.
func (h *harness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := newJSONRequest(t, method, path, body)
	req.Header.Set("Authorization", h.jwt.BearerHeader(h.user))
	return h.serve(req)
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	return serveRouter(h.router, req)
}

func serveRouter(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newJSONRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

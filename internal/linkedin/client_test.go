package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
	"github.com/that-cod/reepost-ai-sub001/pkg/clients"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	c := NewClient(Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "https://app.example.com/api/linkedin/callback",
		AuthURL:      srv.URL + "/oauth/v2",
		APIURL:       srv.URL,
	}, nil, logger)
	c.now = func() time.Time { return time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestAuthURL(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewClient(Config{ClientID: "cid", ClientSecret: "s", RedirectURL: "https://x/cb"}, nil, logger)

	raw, err := c.AuthURL("state-123")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.linkedin.com", u.Host)
	assert.Equal(t, "/oauth/v2/authorization", u.Path)
	assert.Equal(t, "state-123", u.Query().Get("state"))
	assert.Equal(t, "code", u.Query().Get("response_type"))

	_, err = NewClient(Config{}, nil, logger).AuthURL("s")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/v2/accessToken", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})

	tok, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, time.Date(2026, 4, 1, 1, 0, 0, 0, time.UTC), tok.ExpiresAt)
}

func TestUserInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"sub":"abc","name":"Ada","email":"ada@example.com"}`))
	})

	m, err := c.UserInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:person:abc", m.URN)
}

func TestPublishPost(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/ugcPosts", r.URL.Path)
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		var body ugcPost
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "urn:li:person:abc", body.Author)
		w.Header().Set("X-RestLi-Id", "urn:li:share:42")
		w.WriteHeader(http.StatusCreated)
	})

	urn, err := c.PublishPost(context.Background(), "tok", "urn:li:person:abc", "hello world")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:42", urn)
}

func TestFetchCounters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/socialActions/urn:li:share:42", r.URL.Path)
		_, _ = w.Write([]byte(`{"likesSummary":{"totalLikes":12},"commentsSummary":{"aggregatedTotalComments":3}}`))
	})

	got, err := c.FetchCounters(context.Background(), "tok", "urn:li:share:42")
	require.NoError(t, err)
	assert.Equal(t, ranking.Counters{Likes: 12, Comments: 3}, got)
}

func TestAPIErrorIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
	})

	_, err := c.UserInfo(context.Background(), "tok")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, IsUpstreamFailure(err))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	breaker := clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		Name:         "linkedin-test",
		MinRequests:  2,
		FailureRatio: 0.5,
		Timeout:      time.Minute,
		IsFailure:    IsUpstreamFailure,
	})
	c := NewClient(Config{APIURL: srv.URL}, breaker, logger)

	for i := 0; i < 3; i++ {
		_, _ = c.FetchCounters(context.Background(), "tok", "urn:li:share:1")
	}
	_, err := c.FetchCounters(context.Background(), "tok", "urn:li:share:1")
	assert.True(t, clients.IsOpenError(err))
	assert.Less(t, calls.Load(), int32(4))
}

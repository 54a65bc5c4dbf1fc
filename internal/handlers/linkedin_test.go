package handlers

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/linkedin"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
)

func TestLinkedInConnectSignsState(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/linkedin/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp redirectResponse
	decode(t, rec, &resp)
	assert.Contains(t, resp.URL, "state=")

	userID, err := auth.ValidateStateToken(h.oauth.state, h.jwt.Secret)
	require.NoError(t, err)
	assert.Equal(t, h.user.UserID, userID)
}

func TestLinkedInCallbackStoresCredentials(t *testing.T) {
	h := newHarness(t)
	state, err := auth.GenerateStateToken(h.user.UserID, h.jwt.Secret, time.Minute)
	require.NoError(t, err)

	rec := h.serve(newJSONRequest(t, http.MethodGet, "/api/linkedin/callback?code=abc&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, h.user.UserID, h.linked.userID)
	assert.Equal(t, "urn:li:person:abc", h.linked.creds.MemberURN)
	assert.Equal(t, "li-token", h.linked.creds.AccessToken)
}

func TestLinkedInCallbackRejectsForgedState(t *testing.T) {
	h := newHarness(t)

	// a session token is not a valid state value
	rec := h.serve(newJSONRequest(t, http.MethodGet, "/api/linkedin/callback?code=abc&state="+h.jwt.GenerateValidJWT(h.user), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.linked.userID)
}

func TestLinkedInCallbackUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.oauth.exchangeErr = &linkedin.APIError{StatusCode: http.StatusBadRequest, Body: "invalid code"}
	state, err := auth.GenerateStateToken(h.user.UserID, h.jwt.Secret, time.Minute)
	require.NoError(t, err)

	rec := h.serve(newJSONRequest(t, http.MethodGet, "/api/linkedin/callback?code=abc&state="+url.QueryEscape(state), nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, h.linked.userID)
}

func TestLinkedInCallbackRedirectsToApp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	secret := []byte("state-secret")
	accounts := &linkedInAccountsStub{}
	handler := NewLinkedInHandler(&oauthStub{member: linkedin.Member{URN: "urn:li:person:z"}}, accounts, secret, "https://app.test/settings", logger)

	router := gin.New()
	router.GET("/cb", handler.Callback)

	state, err := auth.GenerateStateToken("u1", secret, time.Minute)
	require.NoError(t, err)
	rec := serveRouter(router, newJSONRequest(t, http.MethodGet, "/cb?code=c&state="+url.QueryEscape(state), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.test/settings?linkedin=connected", rec.Header().Get("Location"))

	rec = serveRouter(router, newJSONRequest(t, http.MethodGet, "/cb?error=user_cancelled_login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://app.test/settings?linkedin=denied", rec.Header().Get("Location"))
}

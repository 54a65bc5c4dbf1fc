package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/api/common"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

// stateTTL bounds how long a consent round trip may take.
const stateTTL = 10 * time.Minute

type LinkedInHandler struct {
	oauth    LinkedInOAuth
	accounts LinkedInAccounts
	secret   []byte
	// returnURL receives the browser after the callback; empty means JSON.
	returnURL string
	logger    logging.Logger
}

func NewLinkedInHandler(oauth LinkedInOAuth, accounts LinkedInAccounts, secret []byte, returnURL string, logger logging.Logger) *LinkedInHandler {
	return &LinkedInHandler{
		oauth:     oauth,
		accounts:  accounts,
		secret:    secret,
		returnURL: returnURL,
		logger:    logger,
	}
}

// Connect serves GET /api/linkedin/connect.
func (h *LinkedInHandler) Connect(c *gin.Context) {
	state, err := auth.GenerateStateToken(auth.CurrentUserID(c), h.secret, stateTTL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	authURL, err := h.oauth.AuthURL(state)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, redirectResponse{URL: authURL})
}

// Callback serves GET /api/linkedin/callback. It is reached by browser
// redirect, so the user comes from the signed state rather than a session.
func (h *LinkedInHandler) Callback(c *gin.Context) {
	if denied := c.Query("error"); denied != "" {
		h.finish(c, http.StatusBadRequest, "denied")
		return
	}

	userID, err := auth.ValidateStateToken(c.Query("state"), h.secret)
	if err != nil {
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Invalid or expired state")
		return
	}
	code := c.Query("code")
	if code == "" {
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Missing authorization code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauth.ExchangeCode(ctx, code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	member, err := h.oauth.UserInfo(ctx, token.AccessToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	expiresAt := token.ExpiresAt
	creds := users.LinkedInCredentials{
		MemberURN:   member.URN,
		AccessToken: token.AccessToken,
		ExpiresAt:   &expiresAt,
	}
	if err := h.accounts.SetLinkedIn(ctx, userID, creds); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logging.Fields{
		"user_id":    userID,
		"member_urn": member.URN,
	}).Info("LinkedIn account connected")
	h.finish(c, http.StatusOK, "connected")
}

func (h *LinkedInHandler) finish(c *gin.Context, status int, result string) {
	if h.returnURL == "" {
		c.JSON(status, gin.H{"linkedin": result})
		return
	}
	target, err := url.Parse(h.returnURL)
	if err != nil {
		c.JSON(status, gin.H{"linkedin": result})
		return
	}
	q := target.Query()
	q.Set("linkedin", result)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusFound, target.String())
}

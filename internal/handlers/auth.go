package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/api/common"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
	"github.com/that-cod/reepost-ai-sub001/pkg/middleware"
)

type AuthHandler struct {
	accounts     AccountService
	verifier     HumanVerifier
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	logger       logging.Logger
}

func NewAuthHandler(accounts AccountService, secret []byte, ttl time.Duration, secureCookie bool, logger logging.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	return &AuthHandler{
		accounts:     accounts,
		secret:       secret,
		ttl:          ttl,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// WithVerifier requires a passing bot challenge on Register.
func (h *AuthHandler) WithVerifier(v HumanVerifier) *AuthHandler {
	h.verifier = v
	return h
}

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	TurnstileToken string `json:"turnstile_token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}
	if !h.verifyHuman(c, req.TurnstileToken) {
		return
	}

	u, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.startSession(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}

	u, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.startSession(c, http.StatusOK, u)
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.accounts.Get(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) startSession(c *gin.Context, status int, u *users.User) {
	token, err := auth.GenerateJWT(u.ID, u.Email, u.Plan, h.secret, h.ttl)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	auth.SetSessionCookie(c, token, h.ttl, h.secureCookie)
	c.JSON(status, sessionResponse{Token: token, User: u})
}

func (h *AuthHandler) verifyHuman(c *gin.Context, token string) bool {
	if h.verifier == nil {
		return true
	}
	res, err := h.verifier.Verify(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Turnstile verification error")
		common.Abort(c, http.StatusServiceUnavailable, common.CodeUnavailable, "Verification service unavailable")
		return false
	}
	if !res.Success {
		middleware.GetContextLogger(c, h.logger).WithField("error_codes", res.ErrorCodes).Warn("Turnstile verification failed")
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Human verification failed")
		return false
	}
	return true
}

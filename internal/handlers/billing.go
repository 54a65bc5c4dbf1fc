package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/billing"
	"github.com/that-cod/reepost-ai-sub001/internal/metrics"
	"github.com/that-cod/reepost-ai-sub001/pkg/api/common"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

// maxWebhookBody caps Stripe deliveries read into memory.
const maxWebhookBody = 1 << 20

type BillingHandler struct {
	service BillingService
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewBillingHandler(service BillingService, logger logging.Logger, m *metrics.Metrics) *BillingHandler {
	return &BillingHandler{service: service, logger: logger, metrics: m}
}

type checkoutRequest struct {
	Plan string `json:"plan" binding:"required"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

func (h *BillingHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}
	url, err := h.service.Checkout(c.Request.Context(), auth.CurrentUserID(c), req.Plan)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, redirectResponse{URL: url})
}

func (h *BillingHandler) Portal(c *gin.Context) {
	url, err := h.service.Portal(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, redirectResponse{URL: url})
}

func (h *BillingHandler) Subscription(c *gin.Context) {
	sub, err := h.service.Subscription(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Webhook serves POST /webhooks/stripe. The raw body is needed for the
// signature check, so it is read before any decoding.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Failed to read request body")
		return
	}

	duplicate, err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
	case errors.Is(err, billing.ErrInvalidSignature):
		h.metrics.IncWebhook("stripe", "invalid_signature")
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Invalid signature")
		return
	case errors.Is(err, billing.ErrInvalidPayload):
		h.metrics.IncWebhook("stripe", "invalid_payload")
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Invalid payload")
		return
	default:
		h.metrics.IncWebhook("stripe", "error")
		respondError(c, h.logger, err)
		return
	}

	outcome := "processed"
	if duplicate {
		outcome = "duplicate"
	}
	h.metrics.IncWebhook("stripe", outcome)
	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": duplicate})
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/analytics"
	"github.com/that-cod/reepost-ai-sub001/internal/billing"
	"github.com/that-cod/reepost-ai-sub001/internal/linkedin"
	"github.com/that-cod/reepost-ai-sub001/internal/media"
	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/internal/quota"
	"github.com/that-cod/reepost-ai-sub001/internal/search"
	"github.com/that-cod/reepost-ai-sub001/internal/trending"
	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/api/common"
	"github.com/that-cod/reepost-ai-sub001/pkg/clients"
	"github.com/that-cod/reepost-ai-sub001/pkg/llm"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
	"github.com/that-cod/reepost-ai-sub001/pkg/middleware"
)

// respondError maps domain errors onto HTTP statuses. Unrecognised errors
// are logged and reported as 500 without their message.
func respondError(c *gin.Context, logger logging.Logger, err error) {
	var (
		validationErr *search.ValidationError
		upstreamErr   *search.UpstreamError
		llmErr        *llm.APIError
		linkedInErr   *linkedin.APIError
	)

	switch {
	case errors.As(err, &validationErr):
		common.AbortValidation(c, "Invalid request", map[string]string{validationErr.Field: validationErr.Message})

	case errors.As(err, &upstreamErr):
		writeUpstream(c, "Embedding provider unavailable", upstreamErr.Retryable)

	case errors.Is(err, posts.ErrInvalidInput),
		errors.Is(err, users.ErrInvalidInput),
		errors.Is(err, analytics.ErrInvalidQuery),
		errors.Is(err, trending.ErrInvalidTimeframe),
		errors.Is(err, billing.ErrUnknownPlan),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, media.ErrEmpty):
		common.Abort(c, http.StatusBadRequest, common.CodeValidation, err.Error())

	case errors.Is(err, media.ErrTooLarge):
		common.Abort(c, http.StatusRequestEntityTooLarge, common.CodeTooLarge, err.Error())

	case errors.Is(err, posts.ErrNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, analytics.ErrPostNotFound):
		common.Abort(c, http.StatusNotFound, common.CodeNotFound, "Not found")

	case errors.Is(err, billing.ErrNoCustomer):
		common.Abort(c, http.StatusNotFound, common.CodeNotFound, err.Error())

	case errors.Is(err, posts.ErrConflict),
		errors.Is(err, users.ErrEmailTaken):
		common.Abort(c, http.StatusConflict, common.CodeConflict, err.Error())

	case errors.Is(err, posts.ErrNotConnected),
		errors.Is(err, analytics.ErrNotConnected):
		common.Abort(c, http.StatusConflict, common.CodeNotConnected, "LinkedIn account not connected")

	case errors.Is(err, users.ErrInvalidCredentials):
		common.Abort(c, http.StatusUnauthorized, common.CodeUnauthorized, err.Error())

	case errors.Is(err, quota.ErrExceeded):
		common.Abort(c, http.StatusTooManyRequests, common.CodeQuotaExceeded, "Daily limit reached for your plan")

	case errors.Is(err, billing.ErrNotConfigured),
		errors.Is(err, media.ErrNotConfigured),
		errors.Is(err, linkedin.ErrNotConfigured):
		common.Abort(c, http.StatusServiceUnavailable, common.CodeUnavailable, err.Error())

	case clients.IsOpenError(err):
		writeUpstream(c, "Upstream temporarily unavailable", true)

	case errors.As(err, &llmErr), errors.Is(err, posts.ErrEmptyGeneration):
		writeUpstream(c, "Language model unavailable", llm.IsRetryable(err))

	case errors.As(err, &linkedInErr):
		writeUpstream(c, "LinkedIn request failed", linkedin.IsUpstreamFailure(err))

	default:
		middleware.GetContextLogger(c, logger).WithError(err).Error("Request failed")
		common.Abort(c, http.StatusInternalServerError, common.CodeInternal, "Internal server error")
	}
}

func writeUpstream(c *gin.Context, message string, retryable bool) {
	status := http.StatusBadGateway
	if retryable {
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, common.ErrorResponse{
		Error:     message,
		Code:      common.CodeUpstream,
		Retryable: retryable,
	})
}

func bindError(c *gin.Context) {
	common.Abort(c, http.StatusBadRequest, common.CodeValidation, "Invalid request format")
}

// invalidInput tags a parse failure so respondError reports it as 400.
func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", posts.ErrInvalidInput, err)
}

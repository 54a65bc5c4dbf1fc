package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

type TrendingHandler struct {
	service TrendingService
	logger  logging.Logger
}

func NewTrendingHandler(service TrendingService, logger logging.Logger) *TrendingHandler {
	return &TrendingHandler{service: service, logger: logger}
}

func (h *TrendingHandler) Feed(c *gin.Context) {
	page, err := pagination.Parse(c.Query("limit"), c.Query("offset"), pagination.DefaultLimit, pagination.MaxLimit)
	if err != nil {
		respondError(c, h.logger, invalidInput(err))
		return
	}

	feed, err := h.service.Feed(c.Request.Context(), auth.CurrentUserID(c), c.Query("timeframe"), page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

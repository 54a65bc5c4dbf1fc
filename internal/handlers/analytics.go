package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/analytics"
	"github.com/that-cod/reepost-ai-sub001/internal/metrics"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

type AnalyticsHandler struct {
	service AnalyticsService
	syncer  AnalyticsSyncer
	logger  logging.Logger
	metrics *metrics.Metrics
	now     Clock
}

func NewAnalyticsHandler(service AnalyticsService, syncer AnalyticsSyncer, logger logging.Logger, m *metrics.Metrics) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		syncer:  syncer,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Summary serves GET /api/analytics.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	q, err := analytics.ParseQuery(c.Query("start_date"), c.Query("end_date"), c.Query("post_id"), h.now())
	if err != nil {
		h.metrics.IncAnalyticsQuery("invalid")
		respondError(c, h.logger, err)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), auth.CurrentUserID(c), q)
	if err != nil {
		h.metrics.IncAnalyticsQuery("error")
		respondError(c, h.logger, err)
		return
	}
	h.metrics.IncAnalyticsQuery("ok")
	c.JSON(http.StatusOK, summary)
}

// Sync serves POST /api/analytics/sync.
func (h *AnalyticsHandler) Sync(c *gin.Context) {
	result, err := h.syncer.Sync(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.metrics.AddSynced(result.Synced, result.Failed)
	c.JSON(http.StatusOK, result)
}

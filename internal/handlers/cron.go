package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

type CronHandler struct {
	runner PublishRunner
	logger logging.Logger
}

func NewCronHandler(runner PublishRunner, logger logging.Logger) *CronHandler {
	return &CronHandler{runner: runner, logger: logger}
}

// Publish serves POST /api/cron/publish for external schedulers.
func (h *CronHandler) Publish(c *gin.Context) {
	result, err := h.runner.RunOnce(c.Request.Context(), "cron")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

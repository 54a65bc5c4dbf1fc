package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/metrics"
	"github.com/that-cod/reepost-ai-sub001/internal/search"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

type SearchHandler struct {
	service SearchService
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewSearchHandler(service SearchService, logger logging.Logger, m *metrics.Metrics) *SearchHandler {
	return &SearchHandler{service: service, logger: logger, metrics: m}
}

// Post serves POST /api/search with a JSON body.
func (h *SearchHandler) Post(c *gin.Context) {
	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.ObserveSearch("invalid", time.Now())
		bindError(c)
		return
	}
	h.run(c, req)
}

// Get serves GET /api/search?q=&limit=&threshold=.
func (h *SearchHandler) Get(c *gin.Context) {
	req, err := requestFromQuery(c)
	if err != nil {
		h.metrics.ObserveSearch("invalid", time.Now())
		respondError(c, h.logger, err)
		return
	}
	h.run(c, req)
}

func (h *SearchHandler) run(c *gin.Context, req search.Request) {
	started := time.Now()
	resp, err := h.service.Search(c.Request.Context(), auth.CurrentUserID(c), req)
	if err != nil {
		h.metrics.ObserveSearch(searchOutcome(err), started)
		respondError(c, h.logger, err)
		return
	}
	h.metrics.ObserveSearch("ok", started)
	c.JSON(http.StatusOK, resp)
}

func requestFromQuery(c *gin.Context) (search.Request, error) {
	req := search.Request{Query: c.Query("q")}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return search.Request{}, &search.ValidationError{Field: "limit", Message: "must be an integer"}
		}
		req.Limit = &n
	}
	if raw := c.Query("threshold"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return search.Request{}, &search.ValidationError{Field: "threshold", Message: "must be a number"}
		}
		req.Threshold = &f
	}
	return req, nil
}

func searchOutcome(err error) string {
	var (
		validationErr *search.ValidationError
		upstreamErr   *search.UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		return "invalid"
	case errors.As(err, &upstreamErr):
		return "upstream_error"
	default:
		return "error"
	}
}

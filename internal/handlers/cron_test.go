package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/scheduler"
)

func TestCronPublishRequiresServiceToken(t *testing.T) {
	h := newHarness(t)

	rec := h.serve(newJSONRequest(t, http.MethodPost, "/api/cron/publish", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a user session is not enough
	rec = h.do(t, http.MethodPost, "/api/cron/publish", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, h.runner.trigger)
}

func TestCronPublishRunsScheduler(t *testing.T) {
	h := newHarness(t)
	h.runner.result = scheduler.Result{Claimed: 2, Published: 1, Failed: 1}

	req := newJSONRequest(t, http.MethodPost, "/api/cron/publish", nil)
	req.Header.Set("Authorization", "Bearer "+testServiceToken)
	rec := h.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cron", h.runner.trigger)
	assert.JSONEq(t, `{"claimed":2,"published":1,"failed":1}`, rec.Body.String())
}

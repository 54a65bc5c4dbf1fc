package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/internal/quota"
	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/api/common"
	"github.com/that-cod/reepost-ai-sub001/pkg/llm"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

func TestListPostsDefaults(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/posts?status=draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "draft", h.posts.listStatus)
	assert.Equal(t, pagination.Page{Limit: pagination.DefaultLimit}, h.posts.listPage)
	assert.JSONEq(t, `{"posts":[],"total":0,"limit":20,"offset":0}`, rec.Body.String())
}

func TestListPostsRejectsBadLimit(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/posts?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePost(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/posts", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, h.posts.created, 1)
	assert.Equal(t, "Hello", h.posts.created[0].Content)
}

func TestPostErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		method string
		path   string
		status int
		code   string
	}{
		{"not found", posts.ErrNotFound, http.MethodGet, "/api/posts/p1", http.StatusNotFound, common.CodeNotFound},
		{"invalid", posts.ErrInvalidInput, http.MethodPost, "/api/posts", http.StatusBadRequest, common.CodeValidation},
		{"conflict", posts.ErrConflict, http.MethodPost, "/api/posts/p1/publish", http.StatusConflict, common.CodeConflict},
		{"not connected", posts.ErrNotConnected, http.MethodPost, "/api/posts/p1/publish", http.StatusConflict, common.CodeNotConnected},
		{"unexpected", errors.New("db down"), http.MethodGet, "/api/posts/p1", http.StatusInternalServerError, common.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.posts.err = tt.err

			var body interface{}
			if tt.method == http.MethodPost && tt.path == "/api/posts" {
				body = map[string]string{"content": ""}
			}
			rec := h.do(t, tt.method, tt.path, body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp common.ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestDeletePost(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodDelete, "/api/posts/p9", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p9", h.posts.deleted)
}

func TestGenerateChecksQuotaWithPlan(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/posts/generate", map[string]interface{}{"topic": "remote work"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp generateResponse
	decode(t, rec, &resp)
	assert.Equal(t, "Generated post", resp.Content)
	assert.Nil(t, resp.Post)
	require.NotNil(t, resp.Usage)
	assert.EqualValues(t, 4, resp.Usage.Remaining)
	assert.Equal(t, []string{users.PlanPro}, h.quota.plans)
	assert.Empty(t, h.posts.created)
}

func TestGenerateSavesDraft(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/posts/generate", map[string]interface{}{"topic": "remote work", "save": true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp generateResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Post)
	assert.Equal(t, "Generated post", resp.Post.Content)
}

func TestGenerateQuotaExceeded(t *testing.T) {
	h := newHarness(t)
	h.quota.err = quota.ErrExceeded

	rec := h.do(t, http.MethodPost, "/api/posts/generate", map[string]interface{}{"topic": "remote work"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, h.generator.calls)
}

func TestGenerateRejectsEmptyTopic(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/posts/generate", map[string]interface{}{"topic": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.quota.plans)
}

func TestGenerateProviderFailure(t *testing.T) {
	h := newHarness(t)
	h.generator.err = &llm.APIError{Provider: "openai", StatusCode: http.StatusTooManyRequests}

	rec := h.do(t, http.MethodPost, "/api/posts/generate", map[string]interface{}{"topic": "remote work"})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp common.ErrorResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Retryable)
	assert.Equal(t, common.CodeUpstream, resp.Code)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/internal/metrics"
	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/internal/quota"
	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

type PostsHandler struct {
	posts     PostService
	generator PostGenerator
	quota     QuotaLimiter
	accounts  AccountService
	logger    logging.Logger
	metrics   *metrics.Metrics
}

func NewPostsHandler(
	postService PostService,
	generator PostGenerator,
	limiter QuotaLimiter,
	accounts AccountService,
	logger logging.Logger,
	m *metrics.Metrics,
) *PostsHandler {
	return &PostsHandler{
		posts:     postService,
		generator: generator,
		quota:     limiter,
		accounts:  accounts,
		logger:    logger,
		metrics:   m,
	}
}

type listPostsResponse struct {
	Posts  []posts.Post `json:"posts"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (h *PostsHandler) List(c *gin.Context) {
	page, err := pagination.Parse(c.Query("limit"), c.Query("offset"), pagination.DefaultLimit, pagination.MaxLimit)
	if err != nil {
		respondError(c, h.logger, invalidInput(err))
		return
	}

	list, total, err := h.posts.List(c.Request.Context(), auth.CurrentUserID(c), c.Query("status"), page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []posts.Post{}
	}
	c.JSON(http.StatusOK, listPostsResponse{Posts: list, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (h *PostsHandler) Create(c *gin.Context) {
	var in posts.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c)
		return
	}
	p, err := h.posts.Create(c.Request.Context(), auth.CurrentUserID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PostsHandler) Get(c *gin.Context) {
	p, err := h.posts.Get(c.Request.Context(), auth.CurrentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PostsHandler) Update(c *gin.Context) {
	var in posts.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c)
		return
	}
	p, err := h.posts.Update(c.Request.Context(), auth.CurrentUserID(c), c.Param("id"), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PostsHandler) Delete(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), auth.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PostsHandler) Publish(c *gin.Context) {
	p, err := h.posts.Publish(c.Request.Context(), auth.CurrentUserID(c), c.Param("id"))
	if err != nil {
		h.metrics.IncPublish("manual", "failed")
		respondError(c, h.logger, err)
		return
	}
	h.metrics.IncPublish("manual", "published")
	c.JSON(http.StatusOK, p)
}

type generateResponse struct {
	Content string       `json:"content"`
	Post    *posts.Post  `json:"post,omitempty"`
	Usage   *quota.Usage `json:"usage,omitempty"`
}

// Generate drafts a post with the LLM, charging the caller's daily quota
// first. With save set the draft is stored.
func (h *PostsHandler) Generate(c *gin.Context) {
	var req posts.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c)
		return
	}
	if err := req.Normalize(); err != nil {
		h.metrics.IncGeneration("invalid")
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	userID := auth.CurrentUserID(c)

	var usage *quota.Usage
	if h.quota != nil {
		u, err := h.accounts.Get(ctx, userID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		consumed, err := h.quota.Consume(ctx, userID, u.Plan, quota.ActionGenerate)
		if err != nil {
			if errors.Is(err, quota.ErrExceeded) {
				h.metrics.IncQuotaRejection(quota.ActionGenerate)
			}
			respondError(c, h.logger, err)
			return
		}
		usage = &consumed
	}

	content, err := h.generator.Generate(ctx, req)
	if err != nil {
		h.metrics.IncGeneration("failed")
		respondError(c, h.logger, err)
		return
	}
	h.metrics.IncGeneration("ok")

	resp := generateResponse{Content: content, Usage: usage}
	if req.Save {
		p, err := h.posts.Create(ctx, userID, posts.CreateInput{Content: content})
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		resp.Post = p
	}
	c.JSON(http.StatusOK, resp)
}

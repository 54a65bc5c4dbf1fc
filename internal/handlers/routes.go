package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/that-cod/reepost-ai-sub001/pkg/auth"
)

// Handlers groups every route handler mounted by RegisterRoutes.
type Handlers struct {
	Auth      *AuthHandler
	Posts     *PostsHandler
	Analytics *AnalyticsHandler
	Trending  *TrendingHandler
	Search    *SearchHandler
	Billing   *BillingHandler
	LinkedIn  *LinkedInHandler
	Media     *MediaHandler
	Cron      *CronHandler
}

// RegisterRoutes mounts the public, session and service-token routes.
func RegisterRoutes(r gin.IRouter, h Handlers, jwtSecret []byte, serviceToken string) {
	public := r.Group("/api")
	public.POST("/auth/register", h.Auth.Register)
	public.POST("/auth/login", h.Auth.Login)
	public.GET("/linkedin/callback", h.LinkedIn.Callback)

	r.POST("/webhooks/stripe", h.Billing.Webhook)

	api := r.Group("/api")
	api.Use(auth.JWTAuthMiddleware(jwtSecret))
	{
		api.GET("/me", h.Auth.Me)

		api.GET("/posts", h.Posts.List)
		api.POST("/posts", h.Posts.Create)
		api.POST("/posts/generate", h.Posts.Generate)
		api.GET("/posts/:id", h.Posts.Get)
		api.PATCH("/posts/:id", h.Posts.Update)
		api.DELETE("/posts/:id", h.Posts.Delete)
		api.POST("/posts/:id/publish", h.Posts.Publish)

		api.GET("/analytics", h.Analytics.Summary)
		api.POST("/analytics/sync", h.Analytics.Sync)

		api.GET("/trending", h.Trending.Feed)

		api.GET("/search", h.Search.Get)
		api.POST("/search", h.Search.Post)

		api.POST("/billing/checkout", h.Billing.Checkout)
		api.POST("/billing/portal", h.Billing.Portal)
		api.GET("/billing/subscription", h.Billing.Subscription)

		api.GET("/linkedin/connect", h.LinkedIn.Connect)

		api.POST("/media", h.Media.Upload)
	}

	cron := r.Group("/api/cron")
	cron.Use(auth.ServiceAuthMiddleware(serviceToken))
	cron.POST("/publish", h.Cron.Publish)
}

package handlers

import (
	"context"
	"io"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/analytics"
	"github.com/that-cod/reepost-ai-sub001/internal/billing"
	"github.com/that-cod/reepost-ai-sub001/internal/linkedin"
	"github.com/that-cod/reepost-ai-sub001/internal/media"
	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/internal/quota"
	"github.com/that-cod/reepost-ai-sub001/internal/scheduler"
	"github.com/that-cod/reepost-ai-sub001/internal/search"
	"github.com/that-cod/reepost-ai-sub001/internal/trending"
	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
	"github.com/that-cod/reepost-ai-sub001/pkg/turnstile"
)

type AccountService interface {
	Register(ctx context.Context, email, password, name string) (*users.User, error)
	Login(ctx context.Context, email, password string) (*users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
}

// HumanVerifier checks the bot challenge sent with sign-ups.
type HumanVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (turnstile.Result, error)
}

type PostService interface {
	Create(ctx context.Context, userID string, in posts.CreateInput) (*posts.Post, error)
	Get(ctx context.Context, userID, id string) (*posts.Post, error)
	List(ctx context.Context, userID, status string, page pagination.Page) ([]posts.Post, int, error)
	Update(ctx context.Context, userID, id string, in posts.UpdateInput) (*posts.Post, error)
	Delete(ctx context.Context, userID, id string) error
	Publish(ctx context.Context, userID, id string) (*posts.Post, error)
}

type PostGenerator interface {
	Generate(ctx context.Context, req posts.GenerateRequest) (string, error)
}

type QuotaLimiter interface {
	Consume(ctx context.Context, userID, plan, action string) (quota.Usage, error)
}

type AnalyticsService interface {
	Summary(ctx context.Context, userID string, q analytics.Query) (*analytics.Summary, error)
}

type AnalyticsSyncer interface {
	Sync(ctx context.Context, userID string) (analytics.SyncResult, error)
}

type TrendingService interface {
	Feed(ctx context.Context, userID, timeframe string, page pagination.Page) (*trending.Feed, error)
}

type SearchService interface {
	Search(ctx context.Context, userID string, req search.Request) (*search.Response, error)
}

type BillingService interface {
	Checkout(ctx context.Context, userID, plan string) (string, error)
	Portal(ctx context.Context, userID string) (string, error)
	Subscription(ctx context.Context, userID string) (*billing.Subscription, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (bool, error)
}

type LinkedInOAuth interface {
	AuthURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (linkedin.Token, error)
	UserInfo(ctx context.Context, accessToken string) (linkedin.Member, error)
}

type LinkedInAccounts interface {
	SetLinkedIn(ctx context.Context, userID string, creds users.LinkedInCredentials) error
}

type MediaUploader interface {
	Upload(ctx context.Context, userID string, r io.Reader, declaredType string) (*media.Upload, error)
}

type PublishRunner interface {
	RunOnce(ctx context.Context, trigger string) (scheduler.Result, error)
}

// Clock is swapped in tests.
type Clock func() time.Time

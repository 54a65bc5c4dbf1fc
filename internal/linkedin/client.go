// Package linkedin talks to LinkedIn's OAuth and member APIs.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
	"github.com/that-cod/reepost-ai-sub001/pkg/clients"
	"github.com/that-cod/reepost-ai-sub001/pkg/config"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const (
	defaultAuthURL = "https://www.linkedin.com/oauth/v2"
	defaultAPIURL  = "https://api.linkedin.com"
	defaultScopes  = "openid profile email w_member_social"
)

// ErrNotConfigured is returned by OAuth calls when no client credentials
// are set.
var ErrNotConfigured = errors.New("linkedin client is not configured")

// APIError is a non-2xx answer from LinkedIn.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin API error (status %d): %s", e.StatusCode, e.Body)
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       string
	AuthURL      string
	APIURL       string
	Timeout      time.Duration
}

// LoadConfig reads LINKEDIN_* variables.
func LoadConfig() Config {
	return Config{
		ClientID:     config.GetEnv("LINKEDIN_CLIENT_ID", ""),
		ClientSecret: config.GetEnv("LINKEDIN_CLIENT_SECRET", ""),
		RedirectURL:  config.GetEnv("LINKEDIN_REDIRECT_URL", ""),
		Scopes:       config.GetEnv("LINKEDIN_SCOPES", defaultScopes),
		AuthURL:      config.GetEnv("LINKEDIN_AUTH_URL", defaultAuthURL),
		APIURL:       config.GetEnv("LINKEDIN_API_URL", defaultAPIURL),
		Timeout:      config.GetEnvDuration("LINKEDIN_TIMEOUT", 15*time.Second),
	}
}

func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// Token is the result of an authorization code exchange.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Member identifies the authenticated LinkedIn member.
type Member struct {
	URN   string
	Name  string
	Email string
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *clients.CircuitBreaker
	logger  logging.Logger
	now     func() time.Time
}

func NewClient(cfg Config, breaker *clients.CircuitBreaker, logger logging.Logger) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Scopes == "" {
		cfg.Scopes = defaultScopes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if breaker == nil {
		bc := clients.DefaultCircuitBreakerConfig()
		bc.Name = "linkedin"
		bc.Logger = logger
		bc.IsFailure = IsUpstreamFailure
		breaker = clients.NewCircuitBreaker(bc)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

// IsUpstreamFailure counts transport errors and 5xx/429 answers against
// the breaker. Client errors such as an expired token do not.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// AuthURL is the consent page the user is redirected to.
func (c *Client) AuthURL(state string) (string, error) {
	if !c.cfg.Configured() {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("state", state)
	q.Set("scope", c.cfg.Scopes)
	return strings.TrimRight(c.cfg.AuthURL, "/") + "/authorization?" + q.Encode(), nil
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Token, error) {
	if !c.cfg.Configured() {
		return Token{}, ErrNotConfigured
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURL)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := c.do(ctx, http.MethodPost, strings.TrimRight(c.cfg.AuthURL, "/")+"/accessToken", "",
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &resp, nil)
	if err != nil {
		return Token{}, err
	}
	if resp.AccessToken == "" {
		return Token{}, errors.New("linkedin returned an empty access token")
	}
	return Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
	}, nil
}

// UserInfo resolves the member behind an access token.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (Member, error) {
	var resp struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, c.apiURL("/v2/userinfo"), accessToken, "", nil, &resp, nil); err != nil {
		return Member{}, err
	}
	if resp.Sub == "" {
		return Member{}, errors.New("linkedin userinfo has no subject")
	}
	return Member{URN: "urn:li:person:" + resp.Sub, Name: resp.Name, Email: resp.Email}, nil
}

type ugcPost struct {
	Author          string                 `json:"author"`
	LifecycleState  string                 `json:"lifecycleState"`
	SpecificContent map[string]interface{} `json:"specificContent"`
	Visibility      map[string]string      `json:"visibility"`
}

// PublishPost shares text as the member and returns the created post URN.
func (c *Client) PublishPost(ctx context.Context, accessToken, authorURN, text string) (string, error) {
	body, err := json.Marshal(ugcPost{
		Author:         authorURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		Visibility: map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	var (
		resp   struct{ ID string `json:"id"` }
		header http.Header
	)
	if err := c.do(ctx, http.MethodPost, c.apiURL("/v2/ugcPosts"), accessToken,
		"application/json", bytes.NewReader(body), &resp, &header); err != nil {
		return "", err
	}
	urn := resp.ID
	if urn == "" {
		urn = header.Get("X-RestLi-Id")
	}
	if urn == "" {
		return "", errors.New("linkedin did not return a post id")
	}
	return urn, nil
}

// FetchCounters reads likes and comments for a post. LinkedIn's member
// API does not expose shares or impressions, so those stay zero.
func (c *Client) FetchCounters(ctx context.Context, accessToken, postURN string) (ranking.Counters, error) {
	var resp struct {
		LikesSummary struct {
			TotalLikes int64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}
	endpoint := c.apiURL("/v2/socialActions/" + url.PathEscape(postURN))
	if err := c.do(ctx, http.MethodGet, endpoint, accessToken, "", nil, &resp, nil); err != nil {
		return ranking.Counters{}, err
	}
	return ranking.Counters{
		Likes:    resp.LikesSummary.TotalLikes,
		Comments: resp.CommentsSummary.AggregatedTotalComments,
	}, nil
}

func (c *Client) apiURL(path string) string {
	return strings.TrimRight(c.cfg.APIURL, "/") + path
}

func (c *Client) do(ctx context.Context, method, endpoint, accessToken, contentType string, body io.Reader, out interface{}, header *http.Header) error {
	return c.breaker.CallContext(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if accessToken != "" {
			req.Header.Set("Authorization", "Bearer "+accessToken)
			req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("linkedin request: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read linkedin response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.logger.WithFields(logging.Fields{
				"status":   resp.StatusCode,
				"endpoint": req.URL.Path,
			}).Warn("LinkedIn API error")
			return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		if header != nil {
			*header = resp.Header
		}
		if out != nil && len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("decode linkedin response: %w", err)
			}
		}
		return nil
	})
}

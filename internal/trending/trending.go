// Package trending ranks a user's recently published posts by decayed
// engagement.
package trending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
	"github.com/that-cod/reepost-ai-sub001/pkg/cache"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

// DefaultTimeframe applies when the request names none.
const DefaultTimeframe = "7d"

var ErrInvalidTimeframe = errors.New("timeframe must be one of 24h, 7d, 30d")

var timeframes = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ParseTimeframe maps a timeframe name to its window.
func ParseTimeframe(raw string) (string, time.Duration, error) {
	if raw == "" {
		raw = DefaultTimeframe
	}
	d, ok := timeframes[raw]
	if !ok {
		return "", 0, ErrInvalidTimeframe
	}
	return raw, d, nil
}

// Post is a published post with its counters.
type Post struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at"`
	MediaURL    string     `json:"media_url,omitempty"`
	ranking.Counters
}

// ScoredPost is a Post with its trending score.
type ScoredPost struct {
	Post
	Score          float64 `json:"score"`
	EngagementRate float64 `json:"engagement_rate"`
}

// Feed is one page of the ranked list.
type Feed struct {
	Posts     []ScoredPost `json:"posts"`
	Total     int          `json:"total"`
	Timeframe string       `json:"timeframe"`
	Limit     int          `json:"limit"`
	Offset    int          `json:"offset"`
}

type Store interface {
	ListPublishedSince(ctx context.Context, userID string, since time.Time) ([]Post, error)
}

// Rank scores every post against now, highest first, ties by ID.
func Rank(posts []Post, now time.Time) []ScoredPost {
	scored := make([]ScoredPost, 0, len(posts))
	for _, p := range posts {
		scored = append(scored, ScoredPost{
			Post:           p,
			Score:          ranking.TrendingScore(p.Counters, p.PublishedAt, now),
			EngagementRate: ranking.EngagementRate(p.Counters),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	return scored
}

type Service struct {
	store Store
	cache *cache.Cache[[]Post]
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// WithCache keeps each user's loaded posts per timeframe for the cache
// TTL. Ranking still runs against the current time on every call, but a
// post published after the load stays out of the feed until the entry
// expires.
func (s *Service) WithCache(c *cache.Cache[[]Post]) *Service {
	s.cache = c
	return s
}

// Feed loads posts published within the timeframe and returns the
// requested page of the ranking.
func (s *Service) Feed(ctx context.Context, userID, timeframe string, page pagination.Page) (*Feed, error) {
	name, window, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	now := s.now()

	posts, err := s.load(ctx, userID, name, now.Add(-window))
	if err != nil {
		return nil, err
	}

	ranked := Rank(posts, now)
	start, end := page.Window(len(ranked))
	return &Feed{
		Posts:     ranked[start:end],
		Total:     len(ranked),
		Timeframe: name,
		Limit:     page.Limit,
		Offset:    page.Offset,
	}, nil
}

func (s *Service) load(ctx context.Context, userID, timeframe string, since time.Time) ([]Post, error) {
	if s.cache == nil {
		return s.store.ListPublishedSince(ctx, userID, since)
	}
	cached, err := s.cache.Get(ctx, userID+":"+timeframe, func(ctx context.Context) ([]Post, error) {
		return s.store.ListPublishedSince(ctx, userID, since)
	})
	if err != nil {
		return nil, err
	}
	// a cached list may predate the current window start
	inWindow := make([]Post, 0, len(cached))
	for _, p := range cached {
		if p.PublishedAt != nil && !p.PublishedAt.Before(since) {
			inWindow = append(inWindow, p)
		}
	}
	return inWindow, nil
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) ListPublishedSince(ctx context.Context, userID string, since time.Time) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, published_at, COALESCE(media_url, ''), likes, comments, shares, views
		FROM posts
		WHERE user_id = $1 AND status = 'published'
			AND published_at IS NOT NULL AND published_at >= $2
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list published posts: %w", err)
	}
	defer rows.Close()

	var out []Post
	for rows.Next() {
		var (
			p           Post
			publishedAt time.Time
		)
		if err := rows.Scan(&p.ID, &p.Content, &publishedAt, &p.MediaURL, &p.Likes, &p.Comments, &p.Shares, &p.Views); err != nil {
			return nil, fmt.Errorf("scan published post: %w", err)
		}
		p.PublishedAt = &publishedAt
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate published posts: %w", err)
	}
	return out, nil
}

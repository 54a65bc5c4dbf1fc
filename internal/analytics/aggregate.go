// Package analytics aggregates engagement snapshots into the dashboard
// summary: per-day series, post totals, and the top-posts ranking.
package analytics

import (
	"sort"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
)

// DefaultTopPosts is the length of the top-posts list.
const DefaultTopPosts = 10

const dateLayout = "2006-01-02"

// Snapshot is one (user, post, day) row of counters.
type Snapshot struct {
	UserID string
	PostID string
	Date   time.Time
	ranking.Counters
	EngagementRate float64
}

// PostCounters is the post-level view used for totals and ranking.
type PostCounters struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ranking.Counters
}

// DailyMetrics sums all snapshots that fall on one UTC day.
type DailyMetrics struct {
	Date string `json:"date"`
	ranking.Counters
	EngagementRate float64 `json:"engagement_rate"`
}

// Totals are post-level sums over the selection.
type Totals struct {
	ranking.Counters
	TotalEngagement int64   `json:"total_engagement"`
	PostCount       int     `json:"post_count"`
	EngagementRate  float64 `json:"engagement_rate"`
}

// RankedPost is an entry of the top-posts list.
type RankedPost struct {
	PostCounters
	TotalEngagement int64   `json:"total_engagement"`
	EngagementRate  float64 `json:"engagement_rate"`
}

// GroupByDay buckets snapshots by UTC calendar day, ascending.
func GroupByDay(snapshots []Snapshot) []DailyMetrics {
	byDay := make(map[string]ranking.Counters)
	for _, s := range snapshots {
		day := s.Date.UTC().Format(dateLayout)
		byDay[day] = byDay[day].Add(s.Counters)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]DailyMetrics, 0, len(days))
	for _, day := range days {
		c := byDay[day]
		out = append(out, DailyMetrics{
			Date:           day,
			Counters:       c,
			EngagementRate: ranking.EngagementRate(c),
		})
	}
	return out
}

// Summarize sums post counters. The rate is 0 when there are no views.
func Summarize(posts []PostCounters) Totals {
	var sum ranking.Counters
	for _, p := range posts {
		sum = sum.Add(p.Counters)
	}
	return Totals{
		Counters:        sum,
		TotalEngagement: ranking.TotalEngagement(sum),
		PostCount:       len(posts),
		EngagementRate:  ranking.EngagementRate(sum),
	}
}

// TopPosts ranks posts by total engagement, descending, ties by ID
// ascending, and keeps at most n (DefaultTopPosts when n <= 0).
func TopPosts(posts []PostCounters, n int) []RankedPost {
	if n <= 0 {
		n = DefaultTopPosts
	}

	ranked := make([]RankedPost, 0, len(posts))
	for _, p := range posts {
		ranked = append(ranked, RankedPost{
			PostCounters:    p,
			TotalEngagement: ranking.TotalEngagement(p.Counters),
			EngagementRate:  ranking.EngagementRate(p.Counters),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalEngagement != ranked[j].TotalEngagement {
			return ranked[i].TotalEngagement > ranked[j].TotalEngagement
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

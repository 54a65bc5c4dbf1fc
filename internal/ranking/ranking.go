// Package ranking scores posts for the trending feed and derives the
// engagement ratios shared by analytics and trending.
package ranking

import (
	"math"
	"time"
)

const (
	LikeWeight    = 1.0
	CommentWeight = 3.0
	ShareWeight   = 5.0
	ViewWeight    = 0.1

	// HalfLife is the age at which a post's score has decayed to half.
	HalfLife = 48 * time.Hour
)

// Counters are the engagement counters carried by a post or snapshot.
type Counters struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
	Views    int64 `json:"views"`
}

// Add returns the element-wise sum.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Likes:    c.Likes + o.Likes,
		Comments: c.Comments + o.Comments,
		Shares:   c.Shares + o.Shares,
		Views:    c.Views + o.Views,
	}
}

// EngagementWeight is the weighted popularity proxy of a post.
func EngagementWeight(c Counters) float64 {
	return float64(c.Likes)*LikeWeight +
		float64(c.Comments)*CommentWeight +
		float64(c.Shares)*ShareWeight +
		float64(c.Views)*ViewWeight
}

// DecayFactor halves every HalfLife. Negative ages are clamped to zero so
// a post stamped in the future never scores above its raw weight.
func DecayFactor(hoursSincePublished float64) float64 {
	if hoursSincePublished <= 0 {
		return 1
	}
	return math.Exp(-hoursSincePublished * math.Ln2 / HalfLife.Hours())
}

// TrendingScore combines engagement weight and recency decay. Posts that
// were never published score 0.
func TrendingScore(c Counters, publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	return EngagementWeight(c) * DecayFactor(now.Sub(*publishedAt).Hours())
}

// TotalEngagement counts interactions; views are not interactions.
func TotalEngagement(c Counters) int64 {
	return c.Likes + c.Comments + c.Shares
}

// EngagementRate is interactions per hundred views, 0 without views.
func EngagementRate(c Counters) float64 {
	return Rate(TotalEngagement(c), c.Views)
}

// Rate is interactions/views×100 with the zero-views guard.
func Rate(interactions, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(interactions) / float64(views) * 100
}

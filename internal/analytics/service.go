package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

// DefaultRangeDays is the look-back window when no start date is given.
const DefaultRangeDays = 30

// MaxRangeDays bounds the dashboard range.
const MaxRangeDays = 366

var ErrInvalidQuery = errors.New("invalid analytics query")

// Query selects the snapshots and posts that feed a summary. Start and End
// are inclusive UTC dates.
type Query struct {
	Start  time.Time
	End    time.Time
	PostID string
}

// ParseQuery validates raw request values. Missing dates default to the
// last DefaultRangeDays days, today included.
func ParseQuery(rawStart, rawEnd, postID string, now time.Time) (Query, error) {
	q := Query{End: today(now)}

	if postID != "" {
		id, err := uuid.Parse(postID)
		if err != nil {
			return Query{}, fmt.Errorf("%w: post_id must be a UUID", ErrInvalidQuery)
		}
		q.PostID = id.String()
	}

	if rawEnd != "" {
		end, err := time.Parse(dateLayout, rawEnd)
		if err != nil {
			return Query{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidQuery)
		}
		q.End = end
	}

	q.Start = q.End.AddDate(0, 0, -(DefaultRangeDays - 1))
	if rawStart != "" {
		start, err := time.Parse(dateLayout, rawStart)
		if err != nil {
			return Query{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidQuery)
		}
		q.Start = start
	}

	if q.Start.After(q.End) {
		return Query{}, fmt.Errorf("%w: start_date is after end_date", ErrInvalidQuery)
	}
	if q.End.Sub(q.Start) >= MaxRangeDays*24*time.Hour {
		return Query{}, fmt.Errorf("%w: range exceeds %d days", ErrInvalidQuery, MaxRangeDays)
	}
	return q, nil
}

// Summary is the dashboard payload.
type Summary struct {
	Daily          []DailyMetrics `json:"daily"`
	Totals         Totals         `json:"totals"`
	EngagementRate float64        `json:"engagement_rate"`
	TopPosts       []RankedPost   `json:"top_posts"`
	PostCount      int            `json:"post_count"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	PostID         string         `json:"post_id,omitempty"`
}

// Service loads analytics data and applies the aggregation functions.
type Service struct {
	store  Store
	logger logging.Logger
}

func NewService(store Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Summary builds the dashboard for userID. Snapshots and posts are
// loaded concurrently; either failure fails the whole call.
func (s *Service) Summary(ctx context.Context, userID string, q Query) (*Summary, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	var (
		snapshots []Snapshot
		posts     []PostCounters
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshots, err = s.store.ListSnapshots(gctx, userID, q)
		return err
	})
	g.Go(func() error {
		var err error
		posts, err = s.store.ListPostCounters(gctx, userID, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}

	totals := Summarize(posts)
	return &Summary{
		Daily:          GroupByDay(snapshots),
		Totals:         totals,
		EngagementRate: totals.EngagementRate,
		TopPosts:       TopPosts(posts, DefaultTopPosts),
		PostCount:      totals.PostCount,
		StartDate:      q.Start.Format(dateLayout),
		EndDate:        q.End.Format(dateLayout),
		PostID:         q.PostID,
	}, nil
}

// RecordSnapshot stores the day's counters for a post; the engagement
// rate is always recomputed from the counters.
func (s *Service) RecordSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.UserID == "" || snap.PostID == "" {
		return errors.New("user id and post id are required")
	}
	snap.Date = today(snap.Date)
	snap.EngagementRate = ranking.EngagementRate(snap.Counters)
	return s.store.UpsertSnapshot(ctx, snap)
}

package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

// ErrNotConnected means the user has no usable LinkedIn token.
var ErrNotConnected = errors.New("linkedin account not connected")

// CounterFetcher reads live engagement counters for a published post.
type CounterFetcher interface {
	FetchCounters(ctx context.Context, accessToken, postURN string) (ranking.Counters, error)
}

// TokenSource resolves a user's LinkedIn access token.
type TokenSource interface {
	LinkedInToken(ctx context.Context, userID string) (string, error)
}

// SyncResult reports how many posts were refreshed.
type SyncResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Syncer pulls counters from LinkedIn into posts and today's snapshots.
type Syncer struct {
	service     *Service
	store       Store
	fetcher     CounterFetcher
	tokens      TokenSource
	logger      logging.Logger
	concurrency int
	now         func() time.Time
}

func NewSyncer(service *Service, store Store, fetcher CounterFetcher, tokens TokenSource, logger logging.Logger) *Syncer {
	return &Syncer{
		service:     service,
		store:       store,
		fetcher:     fetcher,
		tokens:      tokens,
		logger:      logger,
		concurrency: 4,
		now:         time.Now,
	}
}

// Sync refreshes every published post of userID. Individual post failures
// are counted, not returned; only setup failures are errors.
func (s *Syncer) Sync(ctx context.Context, userID string) (SyncResult, error) {
	token, err := s.tokens.LinkedInToken(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}
	if token == "" {
		return SyncResult{}, ErrNotConnected
	}

	targets, err := s.store.ListSyncTargets(ctx, userID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load sync targets: %w", err)
	}

	var synced, failed int64
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			if err := s.syncOne(gctx, userID, token, target, now); err != nil {
				atomic.AddInt64(&failed, 1)
				s.logger.WithFields(logging.Fields{
					"user_id": userID,
					"post_id": target.PostID,
					"error":   err,
				}).Warn("Analytics sync failed for post")
				return nil
			}
			atomic.AddInt64(&synced, 1)
			return nil
		})
	}
	_ = g.Wait()

	result := SyncResult{Synced: int(synced), Failed: int(failed)}
	s.logger.WithFields(logging.Fields{
		"user_id": userID,
		"synced":  result.Synced,
		"failed":  result.Failed,
	}).Info("Analytics sync complete")
	return result, nil
}

func (s *Syncer) syncOne(ctx context.Context, userID, token string, target SyncTarget, now time.Time) error {
	live, err := s.fetcher.FetchCounters(ctx, token, target.URN)
	if err != nil {
		return fmt.Errorf("fetch counters: %w", err)
	}
	stored, err := s.store.RaiseCounters(ctx, userID, target.PostID, live)
	if err != nil {
		return err
	}
	return s.service.RecordSnapshot(ctx, Snapshot{
		UserID:   userID,
		PostID:   target.PostID,
		Date:     now,
		Counters: stored,
	})
}

// Package scheduler publishes scheduled posts once they fall due.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/metrics"
	"github.com/that-cod/reepost-ai-sub001/internal/posts"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const (
	DefaultInterval  = time.Minute
	DefaultBatchSize = 25
)

// Claimer hands out due posts, each to exactly one caller.
type Claimer interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]posts.Post, error)
}

// Publisher sends a claimed post and records the outcome.
type Publisher interface {
	PublishClaimed(ctx context.Context, p *posts.Post) error
}

// Result summarises one pass.
type Result struct {
	Claimed   int `json:"claimed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

type Scheduler struct {
	claimer   Claimer
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	// serialises ticker and cron passes within this process
	mu sync.Mutex
}

func New(claimer Claimer, publisher Publisher, interval time.Duration, logger logging.Logger, m *metrics.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		claimer:   claimer,
		publisher: publisher,
		interval:  interval,
		batchSize: DefaultBatchSize,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval.String()).Info("Scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, "scheduler"); err != nil {
				s.logger.WithError(err).Error("Scheduled publish pass failed")
			}
		}
	}
}

// RunOnce claims one batch of due posts and publishes them in order.
// Publish failures are counted; only a failed claim is an error.
func (s *Scheduler) RunOnce(ctx context.Context, trigger string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due, err := s.claimer.ClaimDue(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		return Result{}, err
	}

	res := Result{Claimed: len(due)}
	for i := range due {
		p := &due[i]
		if err := s.publisher.PublishClaimed(ctx, p); err != nil {
			res.Failed++
			s.metrics.IncPublish(trigger, "failed")
			s.logger.WithFields(logging.Fields{
				"post_id": p.ID,
				"user_id": p.UserID,
				"error":   err,
			}).Warn("Scheduled post failed to publish")
			continue
		}
		res.Published++
		s.metrics.IncPublish(trigger, "published")
	}

	if res.Claimed > 0 {
		s.logger.WithFields(logging.Fields{
			"trigger":   trigger,
			"claimed":   res.Claimed,
			"published": res.Published,
			"failed":    res.Failed,
		}).Info("Scheduled publish pass complete")
	}
	return res, nil
}

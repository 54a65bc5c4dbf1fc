// Package quota enforces per-plan daily limits on expensive actions.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const ActionGenerate = "generate"

// Unlimited marks a plan without a daily cap.
const Unlimited = -1

var ErrExceeded = errors.New("daily quota exceeded")

// DefaultLimits are daily generation caps per plan.
var DefaultLimits = map[string]int64{
	users.PlanFree:     5,
	users.PlanPro:      100,
	users.PlanBusiness: Unlimited,
}

// Counter increments a key and sets its expiry in one round trip.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter pipelines INCR and EXPIRE.
type RedisCounter struct {
	client goredis.Cmdable
}

func NewRedisCounter(client goredis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment quota: %w", err)
	}
	return incr.Val(), nil
}

// Usage is the state after a successful Consume.
type Usage struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

type Limiter struct {
	counter Counter
	limits  map[string]int64
	logger  logging.Logger
	now     func() time.Time
}

// NewLimiter returns a limiter; a nil counter disables enforcement.
func NewLimiter(counter Counter, limits map[string]int64, logger logging.Logger) *Limiter {
	if limits == nil {
		limits = DefaultLimits
	}
	return &Limiter{counter: counter, limits: limits, logger: logger, now: time.Now}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.counter != nil
}

// Key is the Redis key for a user's usage of action on now's UTC day.
func Key(action, userID string, now time.Time) string {
	return fmt.Sprintf("repost:quota:%s:%s:%s", action, userID, now.UTC().Format("20060102"))
}

// Consume records one use of action and fails with ErrExceeded when the
// plan's daily cap is already reached. Unknown plans get the free cap.
func (l *Limiter) Consume(ctx context.Context, userID, plan, action string) (Usage, error) {
	limit, ok := l.limits[plan]
	if !ok {
		limit = l.limits[users.PlanFree]
	}
	if !l.Enabled() || limit == Unlimited {
		return Usage{Limit: limit, Remaining: Unlimited}, nil
	}

	now := l.now().UTC()
	y, m, d := now.Date()
	endOfDay := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)

	used, err := l.counter.Incr(ctx, Key(action, userID, now), endOfDay.Sub(now)+time.Hour)
	if err != nil {
		return Usage{}, err
	}
	if used > limit {
		l.logger.WithFields(logging.Fields{
			"user_id": userID,
			"plan":    plan,
			"action":  action,
			"used":    used,
		}).Info("Daily quota exceeded")
		return Usage{Used: limit, Limit: limit}, ErrExceeded
	}
	return Usage{Used: used, Limit: limit, Remaining: limit - used}, nil
}

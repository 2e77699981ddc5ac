// Package ratelimit throttles run admission per user. Exceeding the limit
// produces the same typed failure the stream layer knows how to fold into an
// SSE error frame, so throttled clients always see a structured message with
// the rate_limit_exceeded code, whether the limit tripped before or during a
// run.
package ratelimit

import (
	"context"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a user may start another run. Allow returns nil
// when admitted and a *models.RateLimitExceededError when throttled.
// Infrastructure trouble (an unreachable Redis, for instance) fails open.
type Limiter interface {
	Allow(ctx context.Context, userID string) error
	Close() error
}

// NewLimiter builds the limiter for the given configuration: a no-op when
// disabled, Redis-backed when a client is provided (shared window across
// relay instances), in-memory otherwise.
func NewLimiter(cfg models.RateLimitConfig, redisClient *redis.Client) Limiter {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return noopLimiter{}
	}
	if redisClient != nil {
		return newRedisLimiter(redisClient, cfg.RequestsPerMinute)
	}
	return newMemoryLimiter(cfg.RequestsPerMinute)
}

type noopLimiter struct{}

func (noopLimiter) Allow(ctx context.Context, userID string) error { return nil }
func (noopLimiter) Close() error                                   { return nil }

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:user:"
	redisOpTimeout     = 500 * time.Millisecond
)

// incrWindowScript atomically bumps the window counter and arms its expiry on
// first use, so a crashed client can never leave an immortal counter behind.
// KEYS[1]: window counter key
// ARGV[1]: window TTL in milliseconds
const incrWindowScript = `
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return count
`

// redisLimiter enforces a fixed one-minute window shared across all relay
// instances pointing at the same Redis.
type redisLimiter struct {
	client *redis.Client
	script *redis.Script
	rpm    int
	window time.Duration
}

func newRedisLimiter(client *redis.Client, rpm int) *redisLimiter {
	return &redisLimiter{
		client: client,
		script: redis.NewScript(incrWindowScript),
		rpm:    rpm,
		window: time.Minute,
	}
}

func (l *redisLimiter) Allow(ctx context.Context, userID string) error {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	windowStart := time.Now().Truncate(l.window)
	key := fmt.Sprintf("%s%s:%d", rateLimitKeyPrefix, userID, windowStart.Unix())

	// TTL outlives the window slightly so clock skew between instances never
	// resurrects a zeroed counter mid-window.
	ttl := l.window + 5*time.Second

	count, err := l.script.Run(opCtx, l.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		// Fail open: a broken limiter must not take down run traffic.
		fiberlog.Warnf("Rate limiter Redis error, allowing request: %v", err)
		return nil
	}

	if count > int64(l.rpm) {
		retryAfter := time.Until(windowStart.Add(l.window))
		limitErr := models.NewRateLimitExceededError(
			fmt.Sprintf("rate limit exceeded (%d requests per minute)", l.rpm), nil)
		limitErr.RetryAfter = int(retryAfter.Seconds()) + 1
		return limitErr
	}

	return nil
}

func (l *redisLimiter) Close() error {
	return nil
}

package middleware

import (
	"errors"
	"strconv"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/ratelimit"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// RateLimitMiddleware throttles run admission per user before a provider
// stream is opened. The limiter key is the authenticated user ID, falling
// back to the client IP for anonymous requests.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter) *RateLimitMiddleware {
	if limiter == nil {
		panic("rate limit middleware requires a limiter")
	}
	return &RateLimitMiddleware{limiter: limiter}
}

func (m *RateLimitMiddleware) Limit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := limiterKey(c)

		if err := m.limiter.Allow(c.Context(), key); err != nil {
			var limitErr *models.RateLimitExceededError
			if errors.As(err, &limitErr) {
				fiberlog.Warnf("[%s] rate limited: %s", c.Path(), key)
				if limitErr.RetryAfter > 0 {
					c.Set("Retry-After", strconv.Itoa(limitErr.RetryAfter))
				}
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": limitErr.Message,
					"code":  string(limitErr.Code),
				})
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}

func limiterKey(c *fiber.Ctx) string {
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		return userID
	}
	return "ip:" + c.IP()
}

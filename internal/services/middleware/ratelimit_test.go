package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLimiter struct {
	err     error
	lastKey string
}

func (l *fakeLimiter) Allow(ctx context.Context, userID string) error {
	l.lastKey = userID
	return l.err
}

func (l *fakeLimiter) Close() error { return nil }

func limitTestApp(limiter *fakeLimiter, userID string) *fiber.App {
	app := fiber.New()
	if userID != "" {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_id", userID)
			return c.Next()
		})
	}
	app.Use(NewRateLimitMiddleware(limiter).Limit())
	app.Get("/v1/runs", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestLimitAllows(t *testing.T) {
	limiter := &fakeLimiter{}
	app := limitTestApp(limiter, "user_1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user_1", limiter.lastKey)
}

func TestLimitFallsBackToClientIP(t *testing.T) {
	limiter := &fakeLimiter{}
	app := limitTestApp(limiter, "")

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.NoError(t, err)
	assert.Contains(t, limiter.lastKey, "ip:")
}

func TestLimitThrottles(t *testing.T) {
	limitErr := models.NewRateLimitExceededError("rate limit exceeded (10 requests per minute)", nil)
	limitErr.RetryAfter = 31
	limiter := &fakeLimiter{err: limitErr}
	app := limitTestApp(limiter, "user_1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "31", resp.Header.Get("Retry-After"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "rate limit exceeded (10 requests per minute)", payload["error"])
	assert.Equal(t, string(models.CodeRateLimitExceeded), payload["code"])
}

func TestNewRateLimitMiddlewarePanicsWithoutLimiter(t *testing.T) {
	assert.Panics(t, func() { NewRateLimitMiddleware(nil) })
}

package builder

import "github.com/gofiber/fiber/v2"

// WithMiddleware appends a custom fiber handler mounted after the built-in
// middleware chain and before route handlers.
func (b *Builder) WithMiddleware(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}

// WithRateLimit enables per-user run throttling.
func (b *Builder) WithRateLimit(requestsPerMinute int) *Builder {
	b.cfg.RateLimit.Enabled = true
	b.cfg.RateLimit.RequestsPerMinute = requestsPerMinute
	return b
}

package middleware

import (
	"fmt"
	"strings"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultUserIDClaim = "sub"
	defaultUserHeader  = "X-User-ID"
)

// AuthMiddleware establishes the caller identity for every request. With a
// JWT secret configured it verifies bearer tokens (HS256) and reads the user
// ID from the configured claim; without one, identity comes from the user
// header. The resolved user ID lands in ctx locals for the run handlers.
type AuthMiddleware struct {
	config models.AuthConfig
}

func NewAuthMiddleware(config models.AuthConfig) *AuthMiddleware {
	if config.UserIDClaim == "" {
		config.UserIDClaim = defaultUserIDClaim
	}
	if config.UserHeader == "" {
		config.UserHeader = defaultUserHeader
	}
	if len(config.SkipPaths) == 0 {
		config.SkipPaths = []string{"/health"}
	}
	return &AuthMiddleware{config: config}
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.config.Enabled {
			return c.Next()
		}

		if m.shouldSkipPath(c.Path()) {
			return c.Next()
		}

		if m.config.JWTSecret != "" {
			if token := m.extractToken(c); token != "" {
				userID, err := m.verifyToken(token)
				if err != nil {
					return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
						"error": "Invalid or expired token",
					})
				}
				c.Locals("user_id", userID)
				c.Locals("auth_token", token)
				return c.Next()
			}
		}

		if userID := strings.TrimSpace(c.Get(m.config.UserHeader)); userID != "" {
			c.Locals("user_id", userID)
			return c.Next()
		}

		if m.config.AllowAnonymous {
			return c.Next()
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return strings.TrimSpace(header)
}

// verifyToken checks the HS256 signature and returns the user ID claim.
func (m *AuthMiddleware) verifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims[m.config.UserIDClaim].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("token missing %s claim", m.config.UserIDClaim)
	}
	return userID, nil
}

func (m *AuthMiddleware) shouldSkipPath(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

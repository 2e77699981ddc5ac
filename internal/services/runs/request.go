package runs

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	// requestIDLocalKey is the shared key for storing request ID in fiber locals
	requestIDLocalKey = "request_id"
	// userIDLocalKey is where the auth middleware stores the caller identity
	userIDLocalKey = "user_id"
	// maxRequestIDLength is the maximum allowed length for request IDs
	maxRequestIDLength = 256
)

// RequestService extracts run identity from incoming requests and parses
// run bodies.
type RequestService struct{}

// NewRequestService creates a new request service
func NewRequestService() *RequestService {
	return &RequestService{}
}

// sanitizeRequestID trims and caps the length of a client-supplied ID
func (s *RequestService) sanitizeRequestID(reqID string) string {
	sanitized := strings.TrimSpace(reqID)
	if len(sanitized) > maxRequestIDLength {
		sanitized = sanitized[:maxRequestIDLength]
	}
	return sanitized
}

// GetRequestID extracts or generates a request ID from the context
func (s *RequestService) GetRequestID(c *fiber.Ctx) string {
	if cachedID := c.Locals(requestIDLocalKey); cachedID != nil {
		if str, ok := cachedID.(string); ok && str != "" {
			return str
		}
	}

	var requestID string
	if headerID := c.Get("X-Request-ID"); headerID != "" {
		requestID = s.sanitizeRequestID(headerID)
	}
	if requestID == "" {
		requestID = s.GenerateRequestID()
	}

	c.Locals(requestIDLocalKey, requestID)
	return requestID
}

// GenerateRequestID creates a new random request ID
func (s *RequestService) GenerateRequestID() string {
	return "req_" + randomHex(8)
}

// GenerateRunID creates a new random run ID. Run IDs travel in every stream
// record and usage row for the run.
func (s *RequestService) GenerateRunID() string {
	return "run_" + randomHex(12)
}

// GetUserID returns the caller identity the auth middleware stored, or an
// empty string for unauthenticated requests.
func (s *RequestService) GetUserID(c *fiber.Ctx) string {
	if id := c.Locals(userIDLocalKey); id != nil {
		if str, ok := id.(string); ok {
			return str
		}
	}
	return ""
}

// ParseRunRequest parses and validates the run request body.
func (s *RequestService) ParseRunRequest(c *fiber.Ctx) (*models.RunRequest, error) {
	var req models.RunRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, models.NewValidationError("invalid request body", err)
	}
	if err := req.Validate(); err != nil {
		return nil, models.NewValidationError(err.Error(), err)
	}
	return &req, nil
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failing means the host is broken, but an ID is still
		// needed to keep the request traceable.
		return "unknown"
	}
	return hex.EncodeToString(bytes)
}

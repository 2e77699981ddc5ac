package runs

import (
	"errors"
	"strconv"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ErrorDetail is the error payload body for non-stream failures.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse wraps an error detail in the response envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ResponseService shapes HTTP responses: JSON errors before streaming
// starts, and the SSE header set once it does.
type ResponseService struct{}

// NewResponseService creates a new response service
func NewResponseService() *ResponseService {
	return &ResponseService{}
}

// Success sends a JSON success response
func (s *ResponseService) Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

// Error sends a JSON error response with the given status code
func (s *ResponseService) Error(c *fiber.Ctx, statusCode int, message, errorType string) error {
	return c.Status(statusCode).JSON(ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
		},
	})
}

// HandleError maps an error to the appropriate HTTP error response.
// Only valid before the stream starts; once SSE bytes are on the wire
// errors fold into frames instead.
func (s *ResponseService) HandleError(c *fiber.Ctx, err error, requestID string) error {
	var rateLimitErr *models.RateLimitExceededError
	if errors.As(err, &rateLimitErr) {
		fiberlog.Warnf("[%s] rate limit exceeded: %v", requestID, err)
		if rateLimitErr.RetryAfter > 0 {
			c.Set("Retry-After", strconv.Itoa(rateLimitErr.RetryAfter))
		}
		return s.Error(c, fiber.StatusTooManyRequests, rateLimitErr.Message, "rate_limit_error")
	}

	var contextErr *models.ContextWindowExceededError
	if errors.As(err, &contextErr) {
		fiberlog.Warnf("[%s] context window exceeded: %v", requestID, err)
		return s.Error(c, fiber.StatusBadRequest, contextErr.Message, "invalid_request_error")
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		statusCode := appErr.GetStatusCode()
		if statusCode >= 500 {
			fiberlog.Errorf("[%s] %s error: %v", requestID, appErr.Type, err)
		} else {
			fiberlog.Warnf("[%s] %s error: %v", requestID, appErr.Type, err)
		}
		return s.Error(c, statusCode, appErr.Message, string(appErr.Type))
	}

	fiberlog.Errorf("[%s] unexpected error: %v", requestID, err)
	return s.Error(c, fiber.StatusInternalServerError, "internal server error", "internal_error")
}

// SetStreamHeaders sets the response headers for SSE streaming.
func (s *ResponseService) SetStreamHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Headers", "Cache-Control")
}

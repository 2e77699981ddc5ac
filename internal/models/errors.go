package models

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents validation errors (4xx)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuthentication represents authentication errors (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeAuthorization represents authorization errors (403)
	ErrorTypeAuthorization ErrorType = "authorization"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRateLimit represents rate limiting errors (429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeProvider represents provider-specific errors (502/503)
	ErrorTypeProvider ErrorType = "provider"
	// ErrorTypeTimeout represents timeout errors (504)
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// ErrorCode is a stable, machine-readable code attached to run failures that
// clients are expected to branch on. Codes travel verbatim inside SSE error
// frames, so they must never be renamed once published.
type ErrorCode string

const (
	// CodeContextWindowExceeded signals the prompt plus generation exceeded
	// the model's context window.
	CodeContextWindowExceeded ErrorCode = "context_window_exceeded"
	// CodeRateLimitExceeded signals the provider or the relay throttled the run.
	CodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeAuthorization:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeProvider:
		return http.StatusBadGateway
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewAuthenticationError creates an authentication error
func NewAuthenticationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Retryable:  false,
	}
}

// NewProviderError creates a provider error
func NewProviderError(provider, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("provider %s error: %s", provider, message),
		Code:       fmt.Sprintf("PROVIDER_%s_ERROR", provider),
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Message:    fmt.Sprintf("operation %s timed out", operation),
		StatusCode: http.StatusGatewayTimeout,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		// Return a copy without internal details
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}

// ContextWindowExceededError is the run failure raised when a provider rejects
// a run because the prompt no longer fits the model's context window. Its
// message is client-facing; the wrapped cause is not.
type ContextWindowExceededError struct {
	Message string
	Code    ErrorCode
	Cause   error
}

// NewContextWindowExceededError creates a context window failure carrying the
// stable context_window_exceeded code.
func NewContextWindowExceededError(message string, cause error) *ContextWindowExceededError {
	return &ContextWindowExceededError{
		Message: message,
		Code:    CodeContextWindowExceeded,
		Cause:   cause,
	}
}

func (e *ContextWindowExceededError) Error() string {
	return e.Message
}

func (e *ContextWindowExceededError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the attached code, empty when the failure carries none.
func (e *ContextWindowExceededError) ErrorCode() ErrorCode {
	return e.Code
}

// RateLimitExceededError is the run failure raised when the provider or the
// relay's own limiter throttles a run. Message is client-facing.
type RateLimitExceededError struct {
	Message    string
	Code       ErrorCode
	RetryAfter int // seconds, 0 when unknown
	Cause      error
}

// NewRateLimitExceededError creates a rate limit failure carrying the stable
// rate_limit_exceeded code.
func NewRateLimitExceededError(message string, cause error) *RateLimitExceededError {
	return &RateLimitExceededError{
		Message: message,
		Code:    CodeRateLimitExceeded,
		Cause:   cause,
	}
}

func (e *RateLimitExceededError) Error() string {
	return e.Message
}

func (e *RateLimitExceededError) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the attached code, empty when the failure carries none.
func (e *RateLimitExceededError) ErrorCode() ErrorCode {
	return e.Code
}

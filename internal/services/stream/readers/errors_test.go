package readers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestMapOpenAIErrorRateLimit(t *testing.T) {
	apiErr := &openai.Error{Message: "Rate limit reached for gpt-4o"}
	apiErr.StatusCode = http.StatusTooManyRequests
	apiErr.Response = &http.Response{
		Header: http.Header{"Retry-After": []string{"30"}},
	}

	mapped := MapOpenAIError(apiErr)

	var rateLimited *models.RateLimitExceededError
	require.ErrorAs(t, mapped, &rateLimited)
	assert.Equal(t, "Rate limit reached for gpt-4o", rateLimited.Message)
	assert.Equal(t, models.CodeRateLimitExceeded, rateLimited.Code)
	assert.Equal(t, 30, rateLimited.RetryAfter)
}

func TestMapOpenAIErrorContextWindow(t *testing.T) {
	apiErr := &openai.Error{
		Code:    "context_length_exceeded",
		Message: "This model's maximum context length is 128000 tokens",
	}
	apiErr.StatusCode = http.StatusBadRequest

	mapped := MapOpenAIError(apiErr)

	var contextWindow *models.ContextWindowExceededError
	require.ErrorAs(t, mapped, &contextWindow)
	assert.Equal(t, models.CodeContextWindowExceeded, contextWindow.Code)
	assert.Contains(t, contextWindow.Message, "maximum context length")
}

func TestMapOpenAIErrorPassthrough(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Same(t, plain, MapOpenAIError(plain))
	assert.ErrorIs(t, MapOpenAIError(context.Canceled), context.Canceled)
	assert.NoError(t, MapOpenAIError(nil))
}

func TestMapAnthropicErrorRateLimit(t *testing.T) {
	apiErr := &anthropic.Error{}
	apiErr.StatusCode = http.StatusTooManyRequests

	mapped := MapAnthropicError(apiErr)

	var rateLimited *models.RateLimitExceededError
	require.ErrorAs(t, mapped, &rateLimited)
	assert.Equal(t, models.CodeRateLimitExceeded, rateLimited.Code)
}

func TestMapAnthropicErrorContextWindow(t *testing.T) {
	// Wrap the SDK error so classification sees both the status code and the
	// API message. Request and Response are populated because the SDK's error
	// formatting reads them.
	request, err := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	require.NoError(t, err)
	apiErr := &anthropic.Error{}
	apiErr.StatusCode = http.StatusBadRequest
	apiErr.Request = request
	apiErr.Response = &http.Response{StatusCode: http.StatusBadRequest, Header: http.Header{}}
	wrapped := fmt.Errorf("prompt is too long: 250000 tokens > 200000 maximum: %w", apiErr)

	mapped := MapAnthropicError(wrapped)

	var contextWindow *models.ContextWindowExceededError
	require.ErrorAs(t, mapped, &contextWindow)
	assert.Equal(t, models.CodeContextWindowExceeded, contextWindow.Code)
}

func TestMapGeminiErrorRateLimit(t *testing.T) {
	mapped := MapGeminiError(genai.APIError{Code: 429, Message: "quota exceeded"})

	var rateLimited *models.RateLimitExceededError
	require.ErrorAs(t, mapped, &rateLimited)
	assert.Equal(t, "quota exceeded", rateLimited.Message)
}

func TestMapGeminiErrorContextWindow(t *testing.T) {
	mapped := MapGeminiError(genai.APIError{
		Code:    400,
		Message: "The input token count (1500000) exceeds the maximum allowed (1048576)",
	})

	var contextWindow *models.ContextWindowExceededError
	require.ErrorAs(t, mapped, &contextWindow)
	assert.Equal(t, models.CodeContextWindowExceeded, contextWindow.Code)
}

func TestMapGeminiErrorPointerValue(t *testing.T) {
	mapped := MapGeminiError(fmt.Errorf("generate: %w", &genai.APIError{Code: 429}))

	var rateLimited *models.RateLimitExceededError
	require.ErrorAs(t, mapped, &rateLimited)
}

func TestMapGeminiErrorPassthrough(t *testing.T) {
	plain := errors.New("dial tcp: timeout")
	assert.Same(t, plain, MapGeminiError(plain))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 0, retryAfterSeconds(nil))
	assert.Equal(t, 0, retryAfterSeconds(&http.Response{Header: http.Header{}}))
	assert.Equal(t, 0, retryAfterSeconds(&http.Response{
		Header: http.Header{"Retry-After": []string{"Wed, 21 Oct 2026 07:28:00 GMT"}},
	}))
	assert.Equal(t, 15, retryAfterSeconds(&http.Response{
		Header: http.Header{"Retry-After": []string{"15"}},
	}))
}

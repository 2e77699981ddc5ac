package readers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v2"
	"google.golang.org/genai"
)

// Provider SDK errors fold into the shared typed errors here, so the usage
// pipeline and the stream layer see one taxonomy regardless of provider.
// Context errors pass through untouched; the stream layer treats those as
// client disconnects, not provider failures.

// MapOpenAIError classifies an OpenAI SDK error.
func MapOpenAIError(err error) error {
	if err == nil || isContextError(err) {
		return err
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	message := apiErr.Message
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "provider rate limit exceeded"
		}
		mapped := models.NewRateLimitExceededError(message, err)
		mapped.RetryAfter = retryAfterSeconds(apiErr.Response)
		return mapped
	case apiErr.Code == "context_length_exceeded",
		strings.Contains(message, "maximum context length"):
		if message == "" {
			message = "model context window exceeded"
		}
		return models.NewContextWindowExceededError(message, err)
	}
	return err
}

// MapAnthropicError classifies an Anthropic SDK error.
func MapAnthropicError(err error) error {
	if err == nil || isContextError(err) {
		return err
	}
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		mapped := models.NewRateLimitExceededError("provider rate limit exceeded", err)
		mapped.RetryAfter = retryAfterSeconds(apiErr.Response)
		return mapped
	case apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(err.Error()), "prompt is too long"):
		return models.NewContextWindowExceededError("prompt exceeds the model context window", err)
	}
	return err
}

// MapGeminiError classifies a Gemini SDK error.
func MapGeminiError(err error) error {
	if err == nil || isContextError(err) {
		return err
	}
	apiErr, ok := geminiAPIError(err)
	if !ok {
		return err
	}
	message := apiErr.Message
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if message == "" {
			message = "provider rate limit exceeded"
		}
		return models.NewRateLimitExceededError(message, err)
	case apiErr.Code == http.StatusBadRequest &&
		strings.Contains(message, "token count") &&
		strings.Contains(message, "exceeds"):
		return models.NewContextWindowExceededError(message, err)
	}
	return err
}

// geminiAPIError unwraps a genai API error whether the SDK surfaced it by
// value or by pointer.
func geminiAPIError(err error) (genai.APIError, bool) {
	var val genai.APIError
	if errors.As(err, &val) {
		return val, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// retryAfterSeconds reads the Retry-After header from the failed response.
// Returns 0 when the header is absent or not a plain second count.
func retryAfterSeconds(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

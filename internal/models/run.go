package models

import (
	"fmt"
	"strings"
)

// Provider identifiers accepted in run requests.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// RunMessage is one conversation turn handed to the provider.
type RunMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RunRequest describes one run: which provider/model to execute against,
// the conversation so far, and how to stream the result back.
type RunRequest struct {
	Provider    string       `json:"provider"`
	Model       string       `json:"model"`
	Messages    []RunMessage `json:"messages"`
	System      string       `json:"system,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitzero"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxSteps    int          `json:"max_steps,omitzero"`
	Stream      bool         `json:"stream"`

	// StreamOptions tunes SSE delivery for this run only.
	StreamOptions *RunStreamOptions `json:"stream_options,omitempty"`

	// ProviderConfig optionally overrides the configured provider settings
	// (API key, base URL, timeout) for this request.
	ProviderConfig *ProviderConfig `json:"provider_config,omitempty"`
}

// RunStreamOptions are per-request SSE delivery overrides.
type RunStreamOptions struct {
	// DisableDoneMarker suppresses the terminal [DONE] frame.
	DisableDoneMarker bool `json:"disable_done_marker,omitzero"`
}

// Validate checks the request is executable and normalizes the provider name.
func (r *RunRequest) Validate() error {
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))

	switch r.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	case "":
		return fmt.Errorf("provider is required")
	default:
		return fmt.Errorf("unsupported provider: %s", r.Provider)
	}

	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return fmt.Errorf("messages[%d]: role is required", i)
		}
	}
	if r.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}
	return nil
}

// SendDoneMarker reports whether this run should close its stream with the
// terminal [DONE] frame, given the server default.
func (r *RunRequest) SendDoneMarker(serverDefault bool) bool {
	if r.StreamOptions != nil && r.StreamOptions.DisableDoneMarker {
		return false
	}
	return serverDefault
}

// RunToolCall is a fully assembled tool invocation from an aggregated run.
type RunToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// RunResponse is the aggregated, non-streaming result of a run.
type RunResponse struct {
	RunID      string           `json:"run_id"`
	Provider   string           `json:"provider"`
	Model      string           `json:"model"`
	Content    string           `json:"content"`
	Reasoning  string           `json:"reasoning,omitempty"`
	ToolCalls  []RunToolCall    `json:"tool_calls,omitempty"`
	StopReason StopReason       `json:"stop_reason,omitempty"`
	Usage      *UsageStatistics `json:"usage,omitempty"`
}

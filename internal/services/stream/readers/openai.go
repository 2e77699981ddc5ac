package readers

import (
	"errors"
	"sync"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/openai/openai-go/v2"
)

// OpenAIReader translates OpenAI chat completion chunks into normalized run
// events. One SDK chunk can expand into several events (content, tool calls,
// stop), which drain in order before the next chunk is pulled.
type OpenAIReader struct {
	stream    Stream[openai.ChatCompletionChunk]
	requestID string
	runID     string

	first     *openai.ChatCompletionChunk // cached first chunk to replay
	pending   []any
	current   any
	err       error
	done      bool
	closeOnce sync.Once

	promptTokens     int
	completionTokens int
}

// NewOpenAIReader validates the stream by reading its first chunk, so
// provider errors (429, 500, etc.) surface before the response is committed.
func NewOpenAIReader(
	stream Stream[openai.ChatCompletionChunk],
	requestID, runID string,
) (*OpenAIReader, error) {
	if stream == nil {
		panic("openai reader requires a stream")
	}
	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return nil, MapOpenAIError(err)
		}
		return nil, errors.New("empty stream from provider")
	}
	first := stream.Current()

	return &OpenAIReader{
		stream:    stream,
		requestID: requestID,
		runID:     runID,
		first:     &first,
	}, nil
}

// Next advances to the next normalized event.
func (r *OpenAIReader) Next() bool {
	if r.done {
		return false
	}
	if len(r.pending) > 0 {
		r.current, r.pending = r.pending[0], r.pending[1:]
		return true
	}
	for {
		chunk, ok := r.advance()
		if !ok {
			r.done = true
			return false
		}
		events := r.translate(chunk)
		if len(events) == 0 {
			continue
		}
		r.current, r.pending = events[0], events[1:]
		return true
	}
}

// advance replays the cached first chunk, then pulls from the SDK stream.
func (r *OpenAIReader) advance() (openai.ChatCompletionChunk, bool) {
	if r.first != nil {
		chunk := *r.first
		r.first = nil
		return chunk, true
	}
	if !r.stream.Next() {
		if err := r.stream.Err(); err != nil {
			r.err = MapOpenAIError(err)
		}
		return openai.ChatCompletionChunk{}, false
	}
	return r.stream.Current(), true
}

func (r *OpenAIReader) translate(chunk openai.ChatCompletionChunk) []any {
	// The final chunk carries usage when stream_options.include_usage is set.
	if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
		r.promptTokens = int(chunk.Usage.PromptTokens)
		r.completionTokens = int(chunk.Usage.CompletionTokens)
	}

	var events []any
	for _, choice := range chunk.Choices {
		role := choice.Delta.Role
		if role == "" {
			role = DefaultRole
		}
		if choice.Delta.Content != "" {
			events = append(events, &models.MessageDeltaEvent{
				RunID:     r.runID,
				MessageID: chunk.ID,
				Role:      role,
				Content:   choice.Delta.Content,
			})
		}
		for _, call := range choice.Delta.ToolCalls {
			events = append(events, &models.ToolCallDeltaEvent{
				RunID:      r.runID,
				MessageID:  chunk.ID,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Arguments:  call.Function.Arguments,
			})
		}
		if choice.FinishReason != "" {
			events = append(events, &models.StopEvent{
				RunID:      r.runID,
				MessageID:  chunk.ID,
				StopReason: mapOpenAIFinishReason(choice.FinishReason),
			})
		}
	}
	return events
}

// Current returns the event produced by the last successful Next.
func (r *OpenAIReader) Current() any { return r.current }

// Err reports why the stream ended. Nil after a clean provider EOF.
func (r *OpenAIReader) Err() error { return r.err }

// Close releases the underlying SDK stream. Safe to call more than once.
func (r *OpenAIReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.done = true
		err = r.stream.Close()
	})
	return err
}

// Usage reports the token totals the provider attached to the stream.
// Valid once Next has returned false.
func (r *OpenAIReader) Usage() (promptTokens, completionTokens int) {
	return r.promptTokens, r.completionTokens
}

func mapOpenAIFinishReason(reason string) models.StopReason {
	switch reason {
	case "stop":
		return models.StopReasonEndTurn
	case "length":
		return models.StopReasonMaxTokens
	case "tool_calls", "function_call":
		return models.StopReasonToolUse
	default:
		return models.StopReasonEndTurn
	}
}

package readers

import (
	"errors"
	"sync"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicReader translates Anthropic message stream events into normalized
// run events. Content blocks are tracked by index so tool-call argument
// fragments keep their call ID and name across input_json_delta events.
type AnthropicReader struct {
	stream    Stream[anthropic.MessageStreamEventUnion]
	requestID string
	runID     string

	first     *anthropic.MessageStreamEventUnion // cached first event to replay
	pending   []any
	current   any
	err       error
	done      bool
	closeOnce sync.Once

	messageID string
	blocks    map[int64]toolBlock

	promptTokens     int
	completionTokens int
}

// toolBlock carries the identity of an in-flight tool_use content block.
type toolBlock struct {
	id   string
	name string
}

// NewAnthropicReader validates the stream by reading its first event, so
// provider errors (429, 529, etc.) surface before the response is committed.
func NewAnthropicReader(
	stream Stream[anthropic.MessageStreamEventUnion],
	requestID, runID string,
) (*AnthropicReader, error) {
	if stream == nil {
		panic("anthropic reader requires a stream")
	}
	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return nil, MapAnthropicError(err)
		}
		return nil, errors.New("empty stream from provider")
	}
	first := stream.Current()

	return &AnthropicReader{
		stream:    stream,
		requestID: requestID,
		runID:     runID,
		first:     &first,
		blocks:    make(map[int64]toolBlock),
	}, nil
}

// Next advances to the next normalized event. Protocol-only events such as
// message_start and ping produce nothing and are skipped.
func (r *AnthropicReader) Next() bool {
	if r.done {
		return false
	}
	if len(r.pending) > 0 {
		r.current, r.pending = r.pending[0], r.pending[1:]
		return true
	}
	for {
		event, ok := r.advance()
		if !ok {
			r.done = true
			return false
		}
		events := r.translate(event)
		if len(events) == 0 {
			continue
		}
		r.current, r.pending = events[0], events[1:]
		return true
	}
}

func (r *AnthropicReader) advance() (anthropic.MessageStreamEventUnion, bool) {
	if r.first != nil {
		event := *r.first
		r.first = nil
		return event, true
	}
	if !r.stream.Next() {
		if err := r.stream.Err(); err != nil {
			r.err = MapAnthropicError(err)
		}
		return anthropic.MessageStreamEventUnion{}, false
	}
	return r.stream.Current(), true
}

func (r *AnthropicReader) translate(chunk anthropic.MessageStreamEventUnion) []any {
	switch event := chunk.AsAny().(type) {
	case anthropic.MessageStartEvent:
		r.messageID = event.Message.ID
		r.promptTokens = int(event.Message.Usage.InputTokens)
		return nil

	case anthropic.ContentBlockStartEvent:
		if event.ContentBlock.Type != "tool_use" {
			return nil
		}
		block := toolBlock{id: event.ContentBlock.ID, name: event.ContentBlock.Name}
		r.blocks[event.Index] = block
		// Announce the call before its argument fragments, matching the
		// shape OpenAI uses for the first tool-call delta.
		return []any{&models.ToolCallDeltaEvent{
			RunID:      r.runID,
			MessageID:  r.messageID,
			ToolCallID: block.id,
			Name:       block.name,
		}}

	case anthropic.ContentBlockDeltaEvent:
		switch event.Delta.Type {
		case "text_delta":
			return []any{&models.MessageDeltaEvent{
				RunID:     r.runID,
				MessageID: r.messageID,
				Role:      DefaultRole,
				Content:   event.Delta.Text,
			}}
		case "thinking_delta":
			return []any{&models.ReasoningDeltaEvent{
				RunID:     r.runID,
				MessageID: r.messageID,
				Reasoning: event.Delta.Thinking,
			}}
		case "input_json_delta":
			block := r.blocks[event.Index]
			return []any{&models.ToolCallDeltaEvent{
				RunID:      r.runID,
				MessageID:  r.messageID,
				ToolCallID: block.id,
				Name:       block.name,
				Arguments:  event.Delta.PartialJSON,
			}}
		}
		return nil

	case anthropic.ContentBlockStopEvent:
		delete(r.blocks, event.Index)
		return nil

	case anthropic.MessageDeltaEvent:
		if event.Usage.OutputTokens != 0 {
			r.completionTokens = int(event.Usage.OutputTokens)
		}
		if event.Delta.StopReason != "" {
			return []any{&models.StopEvent{
				RunID:      r.runID,
				MessageID:  r.messageID,
				StopReason: mapAnthropicStopReason(event.Delta.StopReason),
			}}
		}
		return nil
	}
	// message_stop and ping carry no payload.
	return nil
}

// Current returns the event produced by the last successful Next.
func (r *AnthropicReader) Current() any { return r.current }

// Err reports why the stream ended. Nil after a clean provider EOF.
func (r *AnthropicReader) Err() error { return r.err }

// Close releases the underlying SDK stream. Safe to call more than once.
func (r *AnthropicReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.done = true
		err = r.stream.Close()
	})
	return err
}

// Usage reports the token totals the provider attached to the stream.
// Valid once Next has returned false.
func (r *AnthropicReader) Usage() (promptTokens, completionTokens int) {
	return r.promptTokens, r.completionTokens
}

func mapAnthropicStopReason(reason anthropic.StopReason) models.StopReason {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return models.StopReasonMaxTokens
	case anthropic.StopReasonToolUse:
		return models.StopReasonToolUse
	default:
		return models.StopReasonEndTurn
	}
}

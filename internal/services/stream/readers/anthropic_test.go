package readers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anthropicEvent decodes a wire-format stream event through the SDK's own
// unmarshaling, so AsAny dispatch behaves exactly as it does in production.
func anthropicEvent(t *testing.T, raw string) anthropic.MessageStreamEventUnion {
	t.Helper()
	var event anthropic.MessageStreamEventUnion
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func anthropicTextFlow(t *testing.T) []anthropic.MessageStreamEventUnion {
	t.Helper()
	return []anthropic.MessageStreamEventUnion{
		anthropicEvent(t, `{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-sonnet-4-0","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}`),
		anthropicEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		anthropicEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`),
		anthropicEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`),
		anthropicEvent(t, `{"type":"content_block_stop","index":0}`),
		anthropicEvent(t, `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":9}}`),
		anthropicEvent(t, `{"type":"message_stop"}`),
	}
}

func TestAnthropicReaderTranslatesMessageFlow(t *testing.T) {
	stream := &fakeStream[anthropic.MessageStreamEventUnion]{chunks: anthropicTextFlow(t)}

	reader, err := NewAnthropicReader(stream, "req-1", "run-1")
	require.NoError(t, err)

	events := drainReader(reader)
	require.NoError(t, reader.Err())
	require.Len(t, events, 3)

	first, ok := events[0].(*models.MessageDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "msg_01", first.MessageID)
	assert.Equal(t, "assistant", first.Role)
	assert.Equal(t, "Hello", first.Content)

	second, ok := events[1].(*models.MessageDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, " there", second.Content)

	stop, ok := events[2].(*models.StopEvent)
	require.True(t, ok)
	assert.Equal(t, models.StopReasonEndTurn, stop.StopReason)
	assert.Equal(t, "msg_01", stop.MessageID)

	prompt, completion := reader.Usage()
	assert.Equal(t, 12, prompt)
	assert.Equal(t, 9, completion)
}

func TestAnthropicReaderThinkingDeltas(t *testing.T) {
	stream := &fakeStream[anthropic.MessageStreamEventUnion]{chunks: []anthropic.MessageStreamEventUnion{
		anthropicEvent(t, `{"type":"message_start","message":{"id":"msg_02","type":"message","role":"assistant","model":"claude-sonnet-4-0","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":1}}}`),
		anthropicEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}`),
		anthropicEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me check"}}`),
		anthropicEvent(t, `{"type":"content_block_stop","index":0}`),
	}}

	reader, err := NewAnthropicReader(stream, "req-1", "run-2")
	require.NoError(t, err)

	events := drainReader(reader)
	require.Len(t, events, 1)

	reasoning, ok := events[0].(*models.ReasoningDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "Let me check", reasoning.Reasoning)
	assert.Equal(t, "msg_02", reasoning.MessageID)
}

func TestAnthropicReaderToolUseBlocks(t *testing.T) {
	stream := &fakeStream[anthropic.MessageStreamEventUnion]{chunks: []anthropic.MessageStreamEventUnion{
		anthropicEvent(t, `{"type":"message_start","message":{"id":"msg_03","type":"message","role":"assistant","model":"claude-sonnet-4-0","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":20,"output_tokens":1}}}`),
		anthropicEvent(t, `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_01","name":"get_weather","input":{}}}`),
		anthropicEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":\"Par"}}`),
		anthropicEvent(t, `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"is\"}"}}`),
		anthropicEvent(t, `{"type":"content_block_stop","index":0}`),
		anthropicEvent(t, `{"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":15}}`),
		anthropicEvent(t, `{"type":"message_stop"}`),
	}}

	reader, err := NewAnthropicReader(stream, "req-1", "run-3")
	require.NoError(t, err)

	events := drainReader(reader)
	require.Len(t, events, 4)

	announce, ok := events[0].(*models.ToolCallDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "toolu_01", announce.ToolCallID)
	assert.Equal(t, "get_weather", announce.Name)
	assert.Empty(t, announce.Arguments)

	fragment, ok := events[1].(*models.ToolCallDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "toolu_01", fragment.ToolCallID)
	assert.Equal(t, "get_weather", fragment.Name)
	assert.Equal(t, `{"city":"Par`, fragment.Arguments)

	stop, ok := events[3].(*models.StopEvent)
	require.True(t, ok)
	assert.Equal(t, models.StopReasonToolUse, stop.StopReason)

	prompt, completion := reader.Usage()
	assert.Equal(t, 20, prompt)
	assert.Equal(t, 15, completion)
}

func TestAnthropicReaderConstructorSurfacesProviderError(t *testing.T) {
	apiErr := &anthropic.Error{}
	apiErr.StatusCode = http.StatusTooManyRequests
	stream := &fakeStream[anthropic.MessageStreamEventUnion]{err: apiErr}

	reader, err := NewAnthropicReader(stream, "req-1", "run-4")
	require.Error(t, err)
	assert.Nil(t, reader)

	var rateLimited *models.RateLimitExceededError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, models.CodeRateLimitExceeded, rateLimited.Code)
}

func TestAnthropicReaderCloseReleasesStream(t *testing.T) {
	stream := &fakeStream[anthropic.MessageStreamEventUnion]{chunks: anthropicTextFlow(t)}

	reader, err := NewAnthropicReader(stream, "req-1", "run-5")
	require.NoError(t, err)

	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())
	assert.True(t, stream.closed)
	assert.False(t, reader.Next())
}

func TestMapAnthropicStopReason(t *testing.T) {
	cases := map[anthropic.StopReason]models.StopReason{
		anthropic.StopReasonEndTurn:      models.StopReasonEndTurn,
		anthropic.StopReasonStopSequence: models.StopReasonEndTurn,
		anthropic.StopReasonMaxTokens:    models.StopReasonMaxTokens,
		anthropic.StopReasonToolUse:      models.StopReasonToolUse,
	}
	for reason, want := range cases {
		assert.Equal(t, want, mapAnthropicStopReason(reason), string(reason))
	}
}

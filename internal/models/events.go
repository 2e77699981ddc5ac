package models

// Run events are the normalized records a run streams to clients. Provider
// readers translate SDK-specific chunks into these before they reach the SSE
// layer, so every provider serializes identically on the wire.

// Event type discriminators, stamped into the message_type field of every
// structured record.
const (
	MessageTypeMessageDelta   = "message_delta"
	MessageTypeReasoningDelta = "reasoning_delta"
	MessageTypeToolCallDelta  = "tool_call_delta"
	MessageTypeStopEvent      = "stop"
)

// StopReason mirrors the provider's reason for ending a generation step.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonError     StopReason = "error"
)

// EnumValue exposes the underlying scalar for stream serialization.
func (r StopReason) EnumValue() any {
	return string(r)
}

// StreamMarker is a bare protocol marker a run may emit between phases of a
// multi-step run. Markers serialize as plain text frames, not JSON records.
type StreamMarker string

const (
	// MarkerStepDone separates the events of consecutive agent steps.
	MarkerStepDone StreamMarker = "[DONE_STEP]"
	// MarkerGenerationDone signals the provider finished generating for the
	// current step before any post-processing events.
	MarkerGenerationDone StreamMarker = "[DONE_GEN]"
)

// EnumValue exposes the underlying scalar for stream serialization.
func (m StreamMarker) EnumValue() any {
	return string(m)
}

// MessageDeltaEvent carries one increment of assistant-visible text.
type MessageDeltaEvent struct {
	RunID     string `json:"run_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

func (e *MessageDeltaEvent) StreamFields() map[string]any {
	return map[string]any{
		"message_type": MessageTypeMessageDelta,
		"run_id":       e.RunID,
		"message_id":   e.MessageID,
		"role":         e.Role,
		"content":      e.Content,
	}
}

// ReasoningDeltaEvent carries one increment of model reasoning, kept separate
// from message content so clients can render or drop it independently.
type ReasoningDeltaEvent struct {
	RunID     string `json:"run_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Reasoning string `json:"reasoning"`
}

func (e *ReasoningDeltaEvent) StreamFields() map[string]any {
	return map[string]any{
		"message_type": MessageTypeReasoningDelta,
		"run_id":       e.RunID,
		"message_id":   e.MessageID,
		"reasoning":    e.Reasoning,
	}
}

// ToolCallDeltaEvent carries one increment of a tool invocation the model is
// assembling. Arguments arrive as partial JSON across consecutive events.
type ToolCallDeltaEvent struct {
	RunID      string `json:"run_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

func (e *ToolCallDeltaEvent) StreamFields() map[string]any {
	return map[string]any{
		"message_type": MessageTypeToolCallDelta,
		"run_id":       e.RunID,
		"message_id":   e.MessageID,
		"tool_call_id": e.ToolCallID,
		"name":         e.Name,
		"arguments":    e.Arguments,
	}
}

// StopEvent closes a generation step with the provider's stop reason.
type StopEvent struct {
	RunID      string     `json:"run_id,omitempty"`
	MessageID  string     `json:"message_id,omitempty"`
	StopReason StopReason `json:"stop_reason"`
}

func (e *StopEvent) StreamFields() map[string]any {
	return map[string]any{
		"message_type": MessageTypeStopEvent,
		"run_id":       e.RunID,
		"message_id":   e.MessageID,
		"stop_reason":  string(e.StopReason),
	}
}

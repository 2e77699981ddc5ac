package readers

import (
	"encoding/json"
	"errors"
	"iter"
	"sync"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"google.golang.org/genai"
)

// GeminiReader translates Gemini generate-content responses into normalized
// run events. The genai SDK exposes a range-over-func iterator, so the reader
// pins it with iter.Pull2 to get the same pull semantics as the other
// providers.
type GeminiReader struct {
	next      func() (*genai.GenerateContentResponse, error, bool)
	stop      func()
	requestID string
	runID     string

	first     *genai.GenerateContentResponse // cached first chunk to replay
	pending   []any
	current   any
	err       error
	done      bool
	closeOnce sync.Once

	messageID   string
	sawToolCall bool

	promptTokens     int
	completionTokens int
}

// NewGeminiReader validates the stream by reading its first chunk, so
// provider errors (429, 500, etc.) surface before the response is committed.
func NewGeminiReader(
	stream iter.Seq2[*genai.GenerateContentResponse, error],
	requestID, runID string,
) (*GeminiReader, error) {
	if stream == nil {
		panic("gemini reader requires a stream")
	}
	next, stop := iter.Pull2(stream)

	first, err, ok := next()
	if !ok {
		stop()
		return nil, errors.New("empty stream from provider")
	}
	if err != nil {
		stop()
		return nil, MapGeminiError(err)
	}

	return &GeminiReader{
		next:      next,
		stop:      stop,
		requestID: requestID,
		runID:     runID,
		first:     first,
	}, nil
}

// Next advances to the next normalized event.
func (r *GeminiReader) Next() bool {
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
			r.stop()
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

func (r *GeminiReader) advance() (*genai.GenerateContentResponse, bool) {
	if r.first != nil {
		chunk := r.first
		r.first = nil
		return chunk, true
	}
	chunk, err, ok := r.next()
	if !ok {
		return nil, false
	}
	if err != nil {
		r.err = MapGeminiError(err)
		return nil, false
	}
	return chunk, true
}

func (r *GeminiReader) translate(chunk *genai.GenerateContentResponse) []any {
	if chunk.UsageMetadata != nil {
		r.promptTokens = int(chunk.UsageMetadata.PromptTokenCount)
		r.completionTokens = int(chunk.UsageMetadata.CandidatesTokenCount)
	}
	if r.messageID == "" {
		if chunk.ResponseID != "" {
			r.messageID = chunk.ResponseID
		} else {
			r.messageID = r.runID
		}
	}
	if len(chunk.Candidates) == 0 {
		return nil
	}

	candidate := chunk.Candidates[0]
	var events []any
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.FunctionCall != nil:
				r.sawToolCall = true
				events = append(events, &models.ToolCallDeltaEvent{
					RunID:      r.runID,
					MessageID:  r.messageID,
					ToolCallID: part.FunctionCall.ID,
					Name:       part.FunctionCall.Name,
					Arguments:  marshalFunctionArgs(part.FunctionCall.Args),
				})
			case part.Text != "" && part.Thought:
				events = append(events, &models.ReasoningDeltaEvent{
					RunID:     r.runID,
					MessageID: r.messageID,
					Reasoning: part.Text,
				})
			case part.Text != "":
				events = append(events, &models.MessageDeltaEvent{
					RunID:     r.runID,
					MessageID: r.messageID,
					Role:      DefaultRole,
					Content:   part.Text,
				})
			}
		}
	}
	if candidate.FinishReason != "" {
		events = append(events, &models.StopEvent{
			RunID:      r.runID,
			MessageID:  r.messageID,
			StopReason: r.mapGeminiFinishReason(candidate.FinishReason),
		})
	}
	return events
}

// Current returns the event produced by the last successful Next.
func (r *GeminiReader) Current() any { return r.current }

// Err reports why the stream ended. Nil after a clean provider EOF.
func (r *GeminiReader) Err() error { return r.err }

// Close releases the pinned iterator. Safe to call more than once.
func (r *GeminiReader) Close() error {
	r.closeOnce.Do(func() {
		r.done = true
		r.stop()
	})
	return nil
}

// Usage reports the token totals the provider attached to the stream.
// Valid once Next has returned false.
func (r *GeminiReader) Usage() (promptTokens, completionTokens int) {
	return r.promptTokens, r.completionTokens
}

// mapGeminiFinishReason folds Gemini finish reasons into the shared stop
// taxonomy. Gemini reports STOP for tool-calling turns, so a turn that
// produced a function call maps to tool_use.
func (r *GeminiReader) mapGeminiFinishReason(reason genai.FinishReason) models.StopReason {
	switch reason {
	case genai.FinishReasonStop:
		if r.sawToolCall {
			return models.StopReasonToolUse
		}
		return models.StopReasonEndTurn
	case genai.FinishReasonMaxTokens:
		return models.StopReasonMaxTokens
	default:
		// SAFETY, RECITATION and the rest end the stream abnormally.
		return models.StopReasonError
	}
}

func marshalFunctionArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

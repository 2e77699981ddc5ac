package readers

import (
	"errors"
	"iter"
	"testing"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// geminiSeq builds the range-over-func stream shape the genai SDK returns.
func geminiSeq(chunks []*genai.GenerateContentResponse, finalErr error) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if finalErr != nil {
			yield(nil, finalErr)
		}
	}
}

func geminiTextChunk(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		ResponseID: "resp-1",
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func TestGeminiReaderTranslatesTextAndUsage(t *testing.T) {
	final := &genai.GenerateContentResponse{
		ResponseID: "resp-1",
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "!"}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     7,
			CandidatesTokenCount: 3,
		},
	}
	stream := geminiSeq([]*genai.GenerateContentResponse{
		geminiTextChunk("Hello "),
		geminiTextChunk("world"),
		final,
	}, nil)

	reader, err := NewGeminiReader(stream, "req-1", "run-1")
	require.NoError(t, err)

	events := drainReader(reader)
	require.NoError(t, reader.Err())
	require.Len(t, events, 4)

	first, ok := events[0].(*models.MessageDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "resp-1", first.MessageID)
	assert.Equal(t, "assistant", first.Role)
	assert.Equal(t, "Hello ", first.Content)

	stop, ok := events[3].(*models.StopEvent)
	require.True(t, ok)
	assert.Equal(t, models.StopReasonEndTurn, stop.StopReason)

	prompt, completion := reader.Usage()
	assert.Equal(t, 7, prompt)
	assert.Equal(t, 3, completion)
}

func TestGeminiReaderFunctionCall(t *testing.T) {
	stream := geminiSeq([]*genai.GenerateContentResponse{
		{
			ResponseID: "resp-2",
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Role: "model",
					Parts: []*genai.Part{{
						FunctionCall: &genai.FunctionCall{
							ID:   "fc_1",
							Name: "get_weather",
							Args: map[string]any{"city": "Paris"},
						},
					}},
				},
				FinishReason: genai.FinishReasonStop,
			}},
		},
	}, nil)

	reader, err := NewGeminiReader(stream, "req-1", "run-2")
	require.NoError(t, err)

	events := drainReader(reader)
	require.Len(t, events, 2)

	call, ok := events[0].(*models.ToolCallDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "fc_1", call.ToolCallID)
	assert.Equal(t, "get_weather", call.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, call.Arguments)

	stop, ok := events[1].(*models.StopEvent)
	require.True(t, ok)
	assert.Equal(t, models.StopReasonToolUse, stop.StopReason)
}

func TestGeminiReaderThoughtParts(t *testing.T) {
	stream := geminiSeq([]*genai.GenerateContentResponse{
		{
			ResponseID: "resp-3",
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Role: "model",
					Parts: []*genai.Part{
						{Text: "Considering the options", Thought: true},
						{Text: "Paris"},
					},
				},
			}},
		},
	}, nil)

	reader, err := NewGeminiReader(stream, "req-1", "run-3")
	require.NoError(t, err)

	events := drainReader(reader)
	require.Len(t, events, 2)

	reasoning, ok := events[0].(*models.ReasoningDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "Considering the options", reasoning.Reasoning)

	message, ok := events[1].(*models.MessageDeltaEvent)
	require.True(t, ok)
	assert.Equal(t, "Paris", message.Content)
}

func TestGeminiReaderSafetyFinishMapsToError(t *testing.T) {
	stream := geminiSeq([]*genai.GenerateContentResponse{
		{
			ResponseID: "resp-4",
			Candidates: []*genai.Candidate{{
				Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: "partial"}}},
				FinishReason: genai.FinishReasonSafety,
			}},
		},
	}, nil)

	reader, err := NewGeminiReader(stream, "req-1", "run-4")
	require.NoError(t, err)

	events := drainReader(reader)
	require.Len(t, events, 2)

	stop, ok := events[1].(*models.StopEvent)
	require.True(t, ok)
	assert.Equal(t, models.StopReasonError, stop.StopReason)
}

func TestGeminiReaderMidStreamError(t *testing.T) {
	streamErr := errors.New("stream interrupted")
	stream := geminiSeq([]*genai.GenerateContentResponse{geminiTextChunk("partial")}, streamErr)

	reader, err := NewGeminiReader(stream, "req-1", "run-5")
	require.NoError(t, err)

	require.True(t, reader.Next())
	require.False(t, reader.Next())
	assert.ErrorIs(t, reader.Err(), streamErr)
}

func TestGeminiReaderConstructorSurfacesProviderError(t *testing.T) {
	stream := geminiSeq(nil, genai.APIError{Code: 429, Message: "quota exceeded"})

	reader, err := NewGeminiReader(stream, "req-1", "run-6")
	require.Error(t, err)
	assert.Nil(t, reader)

	var rateLimited *models.RateLimitExceededError
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, "quota exceeded", rateLimited.Message)
}

func TestGeminiReaderConstructorRejectsEmptyStream(t *testing.T) {
	reader, err := NewGeminiReader(geminiSeq(nil, nil), "req-1", "run-7")
	require.Error(t, err)
	assert.Nil(t, reader)
	assert.Contains(t, err.Error(), "empty stream")
}

func TestGeminiReaderCloseStopsIterator(t *testing.T) {
	stream := geminiSeq([]*genai.GenerateContentResponse{
		geminiTextChunk("one"),
		geminiTextChunk("two"),
	}, nil)

	reader, err := NewGeminiReader(stream, "req-1", "run-8")
	require.NoError(t, err)

	require.True(t, reader.Next())
	require.NoError(t, reader.Close())
	require.NoError(t, reader.Close())
	assert.False(t, reader.Next())
}

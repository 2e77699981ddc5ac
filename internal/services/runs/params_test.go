package runs

import (
	"testing"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOpenAIParams(t *testing.T) {
	temp := 0.7
	req := &models.RunRequest{
		Provider: models.ProviderOpenAI,
		Model:    "gpt-4o-mini",
		System:   "be brief",
		Messages: []models.RunMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "more"},
		},
		MaxTokens:   256,
		Temperature: &temp,
	}

	params := buildOpenAIParams(req)

	assert.Equal(t, "gpt-4o-mini", string(params.Model))
	assert.True(t, params.StreamOptions.IncludeUsage.Value)
	assert.Equal(t, int64(256), params.MaxCompletionTokens.Value)
	assert.InDelta(t, 0.7, params.Temperature.Value, 1e-9)

	require.Len(t, params.Messages, 4)
	require.NotNil(t, params.Messages[0].OfSystem)
	assert.Equal(t, "be brief", params.Messages[0].OfSystem.Content.OfString.Value)
	require.NotNil(t, params.Messages[1].OfUser)
	assert.Equal(t, "hi", params.Messages[1].OfUser.Content.OfString.Value)
	require.NotNil(t, params.Messages[2].OfAssistant)
	require.NotNil(t, params.Messages[3].OfUser)
}

func TestBuildOpenAIParamsOmitsUnsetTuning(t *testing.T) {
	params := buildOpenAIParams(testRequest())
	assert.False(t, params.MaxCompletionTokens.Valid())
	assert.False(t, params.Temperature.Valid())
}

func TestBuildAnthropicParams(t *testing.T) {
	req := &models.RunRequest{
		Provider: models.ProviderAnthropic,
		Model:    "claude-sonnet-4-0",
		System:   "be brief",
		Messages: []models.RunMessage{
			{Role: "user", Content: "hi"},
			{Role: "system", Content: "stay on topic"},
			{Role: "assistant", Content: "hello"},
		},
		MaxTokens: 512,
	}

	params := buildAnthropicParams(req)

	assert.Equal(t, "claude-sonnet-4-0", string(params.Model))
	assert.Equal(t, int64(512), params.MaxTokens)

	// System turns fold into the system prompt instead of the message list.
	require.Len(t, params.System, 1)
	assert.Equal(t, "be brief\nstay on topic", params.System[0].Text)

	require.Len(t, params.Messages, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, params.Messages[0].Role)
	require.Len(t, params.Messages[0].Content, 1)
	assert.Equal(t, "hi", params.Messages[0].Content[0].OfText.Text)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, params.Messages[1].Role)
}

func TestBuildAnthropicParamsDefaultsMaxTokens(t *testing.T) {
	req := testRequest()
	req.Provider = models.ProviderAnthropic
	params := buildAnthropicParams(req)
	assert.Equal(t, int64(defaultAnthropicMaxTokens), params.MaxTokens)
	assert.Empty(t, params.System)
}

func TestBuildGeminiRequest(t *testing.T) {
	temp := 0.2
	req := &models.RunRequest{
		Provider: models.ProviderGemini,
		Model:    "gemini-2.0-flash",
		System:   "be brief",
		Messages: []models.RunMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		MaxTokens:   128,
		Temperature: &temp,
	}

	contents, config := buildGeminiRequest(req)

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "hi", contents[0].Parts[0].Text)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)

	assert.Equal(t, int32(128), config.MaxOutputTokens)
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.2, float64(*config.Temperature), 1e-6)
	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "be brief", config.SystemInstruction.Parts[0].Text)
}

func TestBuildGeminiRequestWithoutSystem(t *testing.T) {
	req := testRequest()
	req.Provider = models.ProviderGemini
	contents, config := buildGeminiRequest(req)
	require.Len(t, contents, 1)
	assert.Nil(t, config.SystemInstruction)
	assert.Nil(t, config.Temperature)
	assert.Zero(t, config.MaxOutputTokens)
}

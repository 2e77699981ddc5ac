package runs

import (
	"context"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/readers"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

func (s *Service) openOpenAIStream(
	ctx context.Context,
	cfg models.ProviderConfig,
	req *models.RunRequest,
	meta Meta,
) (providerReader, error) {
	client, err := s.openaiClient(cfg)
	if err != nil {
		return nil, err
	}

	fiberlog.Infof("[%s] starting openai run %s - model: %s", meta.RequestID, meta.RunID, req.Model)
	stream := client.Chat.Completions.NewStreaming(ctx, buildOpenAIParams(req))
	return readers.NewOpenAIReader(stream, meta.RequestID, meta.RunID)
}

func (s *Service) openaiClient(cfg models.ProviderConfig) (*openai.Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewProviderError(models.ProviderOpenAI, "API key not configured", nil)
	}
	hash, err := configHash(cfg)
	if err != nil {
		return nil, err
	}
	return s.openaiClients.GetOrCreate("openai:"+hash, func() (*openai.Client, error) {
		fiberlog.Debugf("Creating new OpenAI client (config hash: %s)", hash[:8])
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		for key, value := range cfg.Headers {
			opts = append(opts, option.WithHeader(key, value))
		}
		client := openai.NewClient(opts...)
		return &client, nil
	})
}

// buildOpenAIParams maps a run request onto chat completion params. Usage
// reporting is always requested; the final chunk carries the token totals
// the run's usage task resolves with.
func buildOpenAIParams(req *models.RunRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

package runs

import (
	"context"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/readers"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// defaultAnthropicMaxTokens applies when a run omits max_tokens; the
// Messages API requires an explicit budget.
const defaultAnthropicMaxTokens = 4096

func (s *Service) openAnthropicStream(
	ctx context.Context,
	cfg models.ProviderConfig,
	req *models.RunRequest,
	meta Meta,
) (providerReader, error) {
	client, err := s.anthropicClient(cfg)
	if err != nil {
		return nil, err
	}

	fiberlog.Infof("[%s] starting anthropic run %s - model: %s", meta.RequestID, meta.RunID, req.Model)
	stream := client.Messages.NewStreaming(ctx, buildAnthropicParams(req))
	return readers.NewAnthropicReader(stream, meta.RequestID, meta.RunID)
}

func (s *Service) anthropicClient(cfg models.ProviderConfig) (*anthropic.Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewProviderError(models.ProviderAnthropic, "API key not configured", nil)
	}
	hash, err := configHash(cfg)
	if err != nil {
		return nil, err
	}
	return s.anthropicClients.GetOrCreate("anthropic:"+hash, func() (*anthropic.Client, error) {
		fiberlog.Debugf("Creating new Anthropic client (config hash: %s)", hash[:8])
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		for key, value := range cfg.Headers {
			opts = append(opts, option.WithHeader(key, value))
		}
		client := anthropic.NewClient(opts...)
		return &client, nil
	})
}

// buildAnthropicParams maps a run request onto Messages API params.
// System-role messages fold into the system prompt; the Messages API only
// accepts user and assistant turns.
func buildAnthropicParams(req *models.RunRequest) anthropic.MessageNewParams {
	system := req.System
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += msg.Content
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

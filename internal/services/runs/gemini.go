package runs

import (
	"context"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/readers"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

func (s *Service) openGeminiStream(
	ctx context.Context,
	cfg models.ProviderConfig,
	req *models.RunRequest,
	meta Meta,
) (providerReader, error) {
	client, err := s.geminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	contents, config := buildGeminiRequest(req)
	fiberlog.Infof("[%s] starting gemini run %s - model: %s", meta.RequestID, meta.RunID, req.Model)
	stream := client.Models.GenerateContentStream(ctx, req.Model, contents, config)
	return readers.NewGeminiReader(stream, meta.RequestID, meta.RunID)
}

func (s *Service) geminiClient(ctx context.Context, cfg models.ProviderConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, models.NewProviderError(models.ProviderGemini, "API key not configured", nil)
	}
	hash, err := configHash(cfg)
	if err != nil {
		return nil, err
	}
	return s.geminiClients.GetOrCreate("gemini:"+hash, func() (*genai.Client, error) {
		fiberlog.Debugf("Creating new Gemini client (config hash: %s)", hash[:8])
		return genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
}

// buildGeminiRequest maps a run request onto generate-content contents and
// config. Gemini takes the system prompt as a config-level instruction and
// uses "model" for assistant turns.
func buildGeminiRequest(req *models.RunRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	system := req.System
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += msg.Content
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	return contents, config
}

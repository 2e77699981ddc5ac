// Package runs executes provider runs and bridges them onto the normalized
// chunk stream the SSE layer delivers. A run is one generation request
// against a configured provider: the executor drains the provider reader
// into a channel stream, accumulates token usage, and resolves the run's
// usage task with either final statistics or the mapped failure.
package runs

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/contracts"
	"github.com/signalwork-ai/agent-relay/internal/services/stream/sse"
	"github.com/signalwork-ai/agent-relay/internal/services/usage"
	"github.com/signalwork-ai/agent-relay/internal/utils/clientcache"

	"github.com/anthropics/anthropic-sdk-go"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	"google.golang.org/genai"
)

// streamBuffer is the channel capacity between the executor and the SSE
// consumer. Small on purpose: backpressure from a slow client should reach
// the provider read loop instead of piling events in memory.
const streamBuffer = 64

// Meta identifies one run across logs, frames, and usage rows.
type Meta struct {
	RequestID string
	RunID     string
	UserID    string
}

// providerReader is the per-provider stream surface the executor drains.
type providerReader interface {
	contracts.ChunkStream
	Usage() (promptTokens, completionTokens int)
}

// Service executes runs against the configured providers.
type Service struct {
	providers map[string]models.ProviderConfig
	worker    *usage.Worker // nil disables usage persistence

	openaiClients    *clientcache.Cache[*openai.Client]
	anthropicClients *clientcache.Cache[*anthropic.Client]
	geminiClients    *clientcache.Cache[*genai.Client]
}

// NewService creates a run service. The worker may be nil when no database
// is configured; runs then stream without persisting usage rows.
func NewService(providers map[string]models.ProviderConfig, worker *usage.Worker) *Service {
	return &Service{
		providers:        providers,
		worker:           worker,
		openaiClients:    clientcache.NewCache[*openai.Client](),
		anthropicClients: clientcache.NewCache[*anthropic.Client](),
		geminiClients:    clientcache.NewCache[*genai.Client](),
	}
}

// Stream starts a run and returns the chunk stream to deliver plus the usage
// task that resolves when the run settles. Provider errors that surface
// before the first chunk are returned directly so the caller can still send
// a plain HTTP error response.
func (s *Service) Stream(
	ctx context.Context,
	req *models.RunRequest,
	meta Meta,
) (*sse.ChannelStream, *usage.Task, error) {
	started := time.Now()
	reader, err := s.openReader(ctx, req, meta)
	if err != nil {
		fiberlog.Errorf("[%s] run %s failed to start: %v", meta.RequestID, meta.RunID, err)
		return nil, nil, err
	}

	chunks := sse.NewChannelStream(streamBuffer)
	task := usage.NewTask()
	go s.pump(ctx, reader, chunks, task, req, meta, started)
	return chunks, task, nil
}

// Execute runs to completion without streaming and returns the aggregated
// response.
func (s *Service) Execute(
	ctx context.Context,
	req *models.RunRequest,
	meta Meta,
) (*models.RunResponse, error) {
	started := time.Now()
	reader, err := s.openReader(ctx, req, meta)
	if err != nil {
		fiberlog.Errorf("[%s] run %s failed to start: %v", meta.RequestID, meta.RunID, err)
		return nil, err
	}
	return s.aggregate(reader, req, meta, started)
}

// pump is the run goroutine behind Stream. It owns the reader and settles
// both the chunk stream and the usage task exactly once.
//
// Failure routing: typed stream failures (context window, rate limit) close
// the chunk stream cleanly and reject the usage task, so the stream layer
// folds them into their named error frames. Anything else ends the chunk
// stream with the error and is folded as a decode failure.
func (s *Service) pump(
	ctx context.Context,
	reader providerReader,
	chunks *sse.ChannelStream,
	task *usage.Task,
	req *models.RunRequest,
	meta Meta,
	started time.Time,
) {
	defer reader.Close()

	delivered := 0
	for reader.Next() {
		if err := chunks.Send(ctx, reader.Current()); err != nil {
			// Consumer is gone; nothing downstream awaits the task.
			task.Fail(err)
			fiberlog.Debugf("[%s] run %s consumer detached after %d events: %v",
				meta.RequestID, meta.RunID, delivered, err)
			return
		}
		delivered++
	}

	collector := usage.NewCollector(meta.RunID)
	collector.AddStep(reader.Usage())
	stats := collector.Snapshot()

	err := reader.Err()
	switch {
	case err == nil:
		chunks.CloseSend(nil)
		task.Complete(stats)
		fiberlog.Debugf("[%s] run %s finished: %d events, %d tokens",
			meta.RequestID, meta.RunID, delivered, stats.TotalTokens)
	case isStreamFailure(err):
		chunks.CloseSend(nil)
		task.Fail(err)
	default:
		chunks.CloseSend(err)
		task.Fail(err)
	}
	s.record(req, meta, stats, err, time.Since(started))
}

// aggregate drains the reader into a single response.
func (s *Service) aggregate(
	reader providerReader,
	req *models.RunRequest,
	meta Meta,
	started time.Time,
) (*models.RunResponse, error) {
	defer reader.Close()

	var content, reasoning strings.Builder
	var stopReason models.StopReason
	var toolCalls []models.RunToolCall
	callIndex := map[string]int{}

	for reader.Next() {
		switch event := reader.Current().(type) {
		case *models.MessageDeltaEvent:
			content.WriteString(event.Content)
		case *models.ReasoningDeltaEvent:
			reasoning.WriteString(event.Reasoning)
		case *models.ToolCallDeltaEvent:
			idx, ok := callIndex[event.ToolCallID]
			if !ok {
				idx = len(toolCalls)
				callIndex[event.ToolCallID] = idx
				toolCalls = append(toolCalls, models.RunToolCall{
					ID:   event.ToolCallID,
					Name: event.Name,
				})
			}
			if event.Name != "" {
				toolCalls[idx].Name = event.Name
			}
			toolCalls[idx].Arguments += event.Arguments
		case *models.StopEvent:
			stopReason = event.StopReason
		}
	}

	collector := usage.NewCollector(meta.RunID)
	collector.AddStep(reader.Usage())
	stats := collector.Snapshot()

	runErr := reader.Err()
	s.record(req, meta, stats, runErr, time.Since(started))
	if runErr != nil {
		fiberlog.Errorf("[%s] run %s failed: %v", meta.RequestID, meta.RunID, runErr)
		return nil, runErr
	}

	return &models.RunResponse{
		RunID:      meta.RunID,
		Provider:   req.Provider,
		Model:      req.Model,
		Content:    content.String(),
		Reasoning:  reasoning.String(),
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Usage:      stats,
	}, nil
}

// record enqueues the run's usage row. Best-effort: a nil worker or a full
// queue drops the row without affecting the run.
func (s *Service) record(
	req *models.RunRequest,
	meta Meta,
	stats *models.UsageStatistics,
	runErr error,
	elapsed time.Duration,
) {
	if s.worker == nil {
		return
	}
	params := models.RecordUsageParams{
		RunID:            meta.RunID,
		RequestID:        meta.RequestID,
		UserID:           meta.UserID,
		Provider:         req.Provider,
		Model:            req.Model,
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
		StepCount:        stats.StepCount,
		StatusCode:       http.StatusOK,
		LatencyMs:        int(elapsed.Milliseconds()),
	}
	if runErr != nil {
		params.StatusCode = http.StatusInternalServerError
		params.ErrorMessage = runErr.Error()
	}
	s.worker.Submit(params, meta.RequestID)
}

// openReader resolves the provider config and opens the SDK stream.
func (s *Service) openReader(
	ctx context.Context,
	req *models.RunRequest,
	meta Meta,
) (providerReader, error) {
	cfg, err := s.resolveProviderConfig(req)
	if err != nil {
		return nil, err
	}
	switch req.Provider {
	case models.ProviderOpenAI:
		return s.openOpenAIStream(ctx, cfg, req, meta)
	case models.ProviderAnthropic:
		return s.openAnthropicStream(ctx, cfg, req, meta)
	case models.ProviderGemini:
		return s.openGeminiStream(ctx, cfg, req, meta)
	}
	return nil, models.NewValidationError("unsupported provider: "+req.Provider, nil)
}

// resolveProviderConfig prefers a request-level override, falling back to
// the configured provider settings.
func (s *Service) resolveProviderConfig(req *models.RunRequest) (models.ProviderConfig, error) {
	if req.ProviderConfig != nil && req.ProviderConfig.APIKey != "" {
		return *req.ProviderConfig, nil
	}
	cfg, ok := s.providers[req.Provider]
	if !ok || cfg.APIKey == "" {
		return models.ProviderConfig{}, models.NewProviderError(req.Provider, "provider not configured", nil)
	}
	return cfg, nil
}

// isStreamFailure reports whether the run failed with one of the typed
// errors that carry a client-facing code.
func isStreamFailure(err error) bool {
	var contextWindow *models.ContextWindowExceededError
	var rateLimited *models.RateLimitExceededError
	return errors.As(err, &contextWindow) || errors.As(err, &rateLimited)
}

// configHash keys the client caches on everything that changes a client.
// The API key is hashed so cache keys never hold the raw secret.
func configHash(cfg models.ProviderConfig) (string, error) {
	keyHash := sha256.Sum256([]byte(cfg.APIKey))
	payload, err := json.Marshal(struct {
		BaseURL    string
		Headers    map[string]string
		APIKeyHash string
	}{cfg.BaseURL, cfg.Headers, fmt.Sprintf("%x", keyHash[:8])})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%x", sum[:16]), nil
}

package builder

import (
	"strings"

	"github.com/signalwork-ai/agent-relay/internal/models"
)

type ProviderBuilder struct {
	apiKey    string
	baseURL   string
	timeoutMs int
	headers   map[string]string
}

func NewProviderBuilder(apiKey string) *ProviderBuilder {
	return &ProviderBuilder{
		apiKey:  apiKey,
		headers: make(map[string]string),
	}
}

func (pb *ProviderBuilder) WithBaseURL(url string) *ProviderBuilder {
	pb.baseURL = url
	return pb
}

func (pb *ProviderBuilder) WithTimeout(ms int) *ProviderBuilder {
	pb.timeoutMs = ms
	return pb
}

func (pb *ProviderBuilder) WithHeader(key, value string) *ProviderBuilder {
	pb.headers[key] = value
	return pb
}

func (pb *ProviderBuilder) Build() models.ProviderConfig {
	return models.ProviderConfig{
		APIKey:    pb.apiKey,
		BaseURL:   pb.baseURL,
		TimeoutMs: pb.timeoutMs,
		Headers:   pb.headers,
	}
}

// AddProvider registers a provider under the given name. Names are matched
// case-insensitively against the run request's provider field.
func (b *Builder) AddProvider(name string, cfg models.ProviderConfig) *Builder {
	b.cfg.Providers[strings.ToLower(name)] = cfg
	return b
}

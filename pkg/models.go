package pkg

import "github.com/signalwork-ai/agent-relay/internal/models"

type (
	ServerConfig    = models.ServerConfig
	AuthConfig      = models.AuthConfig
	StreamConfig    = models.StreamConfig
	RateLimitConfig = models.RateLimitConfig
	RedisConfig     = models.RedisConfig
	SentryConfig    = models.SentryConfig
	DatabaseConfig  = models.DatabaseConfig
	ProviderConfig  = models.ProviderConfig
)

// Package builder provides a fluent configuration builder for embedding
// AgentRelay in another program.
package builder

import (
	"github.com/signalwork-ai/agent-relay/internal/config"
	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Builder struct {
	cfg         *config.Config
	middlewares []fiber.Handler
}

func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Providers: make(map[string]models.ProviderConfig),
		},
		middlewares: []fiber.Handler{},
	}
}

func (b *Builder) Build() *config.Config {
	return b.cfg
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

package builder

import (
	"github.com/signalwork-ai/agent-relay/internal/config"
	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/gofiber/fiber/v2"
)

// FromYAML seeds a builder from a YAML config file, optionally loading .env
// files first so ${VAR} substitutions resolve. Fluent setters applied
// afterwards override the file.
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]models.ProviderConfig)
	}

	return &Builder{
		cfg:         cfg,
		middlewares: []fiber.Handler{},
	}, nil
}

package main

import (
	"log"

	"github.com/signalwork-ai/agent-relay/internal/config"
	"github.com/signalwork-ai/agent-relay/pkg/relay"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	// Load environment files explicitly
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	// Load configuration from YAML
	cfg, err := config.LoadFromFile("config.yaml")
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	// Create relay with explicit config
	server := relay.New(cfg)

	// Start the server
	log.Println("Starting AgentRelay server...")
	if err := server.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}

// Package relay assembles and runs the AgentRelay server: configuration
// validation, infrastructure (Redis, database, error reporting), middleware,
// routes, and graceful shutdown.
package relay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/api"
	"github.com/signalwork-ai/agent-relay/internal/config"
	"github.com/signalwork-ai/agent-relay/internal/models"
	"github.com/signalwork-ai/agent-relay/internal/services/database"
	"github.com/signalwork-ai/agent-relay/internal/services/middleware"
	"github.com/signalwork-ai/agent-relay/internal/services/ratelimit"
	"github.com/signalwork-ai/agent-relay/internal/services/reporting"
	"github.com/signalwork-ai/agent-relay/internal/services/runs"
	"github.com/signalwork-ai/agent-relay/internal/services/usage"
	"github.com/signalwork-ai/agent-relay/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

const (
	usageWorkerPoolSize   = 4
	usageWorkerBufferSize = 256
)

// Relay represents an AgentRelay server instance.
type Relay struct {
	config      *config.Config
	app         *fiber.App
	redis       *redis.Client
	db          *database.DB
	reporter    *reporting.Reporter
	limiter     ratelimit.Limiter
	worker      *usage.Worker
	middlewares []fiber.Handler
}

type relayInfrastructure struct {
	redis    *redis.Client
	db       *database.DB
	reporter *reporting.Reporter
}

// New creates a new Relay instance with the given configuration.
// The cfg parameter is required and must not be nil.
func New(cfg *config.Config) *Relay {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or builder.New() to create config")
	}

	return &Relay{config: cfg}
}

// NewWithBuilder creates a new Relay instance from a configuration builder,
// carrying over any custom middleware registered on it.
func NewWithBuilder(b *builder.Builder) *Relay {
	return &Relay{
		config:      b.Build(),
		middlewares: b.GetMiddlewares(),
	}
}

// Run starts the relay server and blocks until shutdown.
func (r *Relay) Run() error {
	// Validate configuration
	if err := r.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Set log level
	setupLogLevel(r.config)

	port := r.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	// Create Fiber app
	r.app = createFiberApp(r.config)

	// === Infrastructure Setup ===
	infra, err := initializeInfrastructure(r.config)
	if err != nil {
		return err
	}
	r.redis = infra.redis
	r.db = infra.db
	r.reporter = infra.reporter

	// Setup cleanup handlers. Defers run in reverse order, so the usage
	// worker drains before the database connection closes under it.
	if r.redis != nil {
		defer func() {
			if err := r.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}
	if r.db != nil {
		defer func() {
			if err := r.db.Close(); err != nil {
				fiberlog.Errorf("Failed to close database connection: %v", err)
			}
		}()
	}
	defer r.reporter.Flush(2 * time.Second)

	// === Services Initialization ===
	r.limiter = ratelimit.NewLimiter(r.config.RateLimit, r.redis)
	defer func() {
		if err := r.limiter.Close(); err != nil {
			fiberlog.Errorf("Failed to close rate limiter: %v", err)
		}
	}()

	if r.db != nil {
		r.worker = usage.NewWorker(usage.NewService(r.db.DB), usageWorkerPoolSize, usageWorkerBufferSize)
		defer r.worker.Stop()
	}

	// === Middleware Setup ===
	setupMiddleware(r.app, r.config, r.middlewares)

	// === Routes Setup ===
	r.setupRoutes()

	// Welcome endpoint
	r.app.Get("/", welcomeHandler())

	// Print startup info
	fmt.Printf("🚀 AgentRelay starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", r.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())
	fmt.Printf("   GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := r.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	// Graceful shutdown
	fiberlog.Info("Server shutting down gracefully...")
	shutdownTimeout := r.shutdownTimeout()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 1)
	go func() {
		shutdownErrChan <- r.app.ShutdownWithTimeout(shutdownTimeout)
	}()

	select {
	case err := <-shutdownErrChan:
		if err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		fiberlog.Info("Server shutdown completed successfully")
	case <-shutdownCtx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}

	return nil
}

func (r *Relay) shutdownTimeout() time.Duration {
	if ms := r.config.Server.ShutdownTimeoutMs; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return 30 * time.Second
}

func (r *Relay) setupRoutes() {
	// Create shared services
	reqSvc := runs.NewRequestService()
	respSvc := runs.NewResponseService()
	runSvc := runs.NewService(r.config.Providers, r.worker)

	runHandler := api.NewRunHandler(r.config, runSvc, reqSvc, respSvc, r.reporter)
	healthHandler := api.NewHealthHandler(r.db, r.redis)

	// Health check endpoint (always enabled, never authenticated)
	r.app.Get("/health", healthHandler.HealthCheck)

	authMiddleware := middleware.NewAuthMiddleware(r.config.Auth)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(r.limiter)

	// v1 routes. Auth runs before the run limiter so throttling keys on the
	// resolved user identity instead of the client address.
	v1Group := r.app.Group("/v1")
	v1Group.Use(authMiddleware.Authenticate())
	v1Group.Use(rateLimitMiddleware.Limit())
	v1Group.Post("/runs", runHandler.CreateRun)
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:              "AgentRelay v1.0",
		EnablePrintRoutes:    !isProd,
		ReadTimeout:          2 * time.Minute,
		WriteTimeout:         2 * time.Minute,
		IdleTimeout:          5 * time.Minute,
		ReadBufferSize:       8192,
		WriteBufferSize:      8192,
		CompressedFileSuffix: ".gz",
		Prefork:              false,
		CaseSensitive:        true,
		StrictRouting:        false,
		Network:              "tcp",
		ServerHeader:         "AgentRelay",
		// Use default Fiber error handler - simpler and more standard
	})
}

func setupMiddleware(app *fiber.App, cfg *config.Config, custom []fiber.Handler) {
	isProd := cfg.IsProduction()
	allowedOrigins := cfg.Server.AllowedOrigins

	// Recover middleware (must be first)
	app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Coarse flood guard keyed by client address. Per-user run throttling
	// happens inside the v1 group after authentication.
	app.Use(limiter.New(limiter.Config{
		Max:               1000,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "request volume limit reached")
		},
	}))

	// Request timeout middleware. Streams are unaffected: SSE delivery reads
	// the fasthttp connection context, not the request-scoped one set here.
	app.Use(func(c *fiber.Ctx) error {
		const (
			defaultTimeout = 30 * time.Second
			maxTimeout     = 2 * time.Minute
		)

		timeout := defaultTimeout
		if customTimeout := c.Get("X-Request-Timeout"); customTimeout != "" {
			if d, err := time.ParseDuration(customTimeout); err == nil && d > 0 {
				timeout = min(d, maxTimeout)
			}
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		return c.Next()
	})

	// Compression
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Logging
	if isProd {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	// CORS
	allAllowedHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "User-Agent",
		"X-Request-ID", "X-User-ID", "X-Request-Timeout", "Cache-Control",
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowHeaders:     strings.Join(allAllowedHeaders, ", "),
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400,
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
	}))

	// Custom middlewares from the builder
	for _, middleware := range custom {
		app.Use(middleware)
	}

	// Profiler (dev only)
	if !isProd {
		app.Use(pprof.New())
	}
}

func setupLogLevel(cfg *config.Config) {
	logLevel := cfg.GetNormalizedLogLevel()

	switch logLevel {
	case "trace":
		fiberlog.SetLevel(fiberlog.LevelTrace)
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "info":
		fiberlog.SetLevel(fiberlog.LevelInfo)
	case "warn", "warning":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	case "fatal":
		fiberlog.SetLevel(fiberlog.LevelFatal)
	case "panic":
		fiberlog.SetLevel(fiberlog.LevelPanic)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
		fiberlog.Warnf("Unknown log level '%s', defaulting to 'info'", logLevel)
	}

	fiberlog.Infof("Log level set to: %s", logLevel)
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":    "Welcome to AgentRelay!",
			"version":    "1.0.0",
			"go_version": runtime.Version(),
			"status":     "running",
			"endpoints": fiber.Map{
				"runs":   "/v1/runs",
				"health": "/health",
			},
		})
	}
}

func initializeInfrastructure(cfg *config.Config) (*relayInfrastructure, error) {
	infra := &relayInfrastructure{}

	redisClient, err := createRedisClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client: %w", err)
	}
	infra.redis = redisClient

	if redisClient != nil {
		fiberlog.Info("Redis client initialized successfully")
	} else {
		fiberlog.Info("Redis not configured - rate limit windows are instance-local")
	}

	if cfg.Database != nil {
		db, err := database.New(*cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection: %w", err)
		}
		infra.db = db

		fiberlog.Infof("Database (%s) initialized successfully", db.DriverName())

		if err := runDatabaseMigrations(db); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		fiberlog.Info("Database migrations completed successfully")
	} else {
		fiberlog.Info("Database not configured - usage rows are not persisted")
	}

	reporter, err := reporting.New(cfg.Sentry, cfg.Server.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize error reporting: %w", err)
	}
	infra.reporter = reporter

	return infra, nil
}

func runDatabaseMigrations(db *database.DB) error {
	usageSvc := usage.NewService(db.DB)
	if err := usageSvc.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate usage table: %w", err)
	}

	return nil
}

func createRedisClient(cfg *models.RedisConfig) (*redis.Client, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, nil
	}

	opt := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ConnMaxLifetime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	fiberlog.Debugf("Redis client configuration: PoolSize=%d, MinIdle=%d, MaxRetries=%d",
		opt.PoolSize, opt.MinIdleConns, opt.MaxRetries)

	client := redis.NewClient(opt)

	// Test connection
	return testRedisConnectionWithRetry(client)
}

func testRedisConnectionWithRetry(client *redis.Client) (*redis.Client, error) {
	const maxAttempts = 3
	const baseDelay = 1 * time.Second

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()

		if err == nil {
			fiberlog.Infof("Redis connection established successfully (attempt %d/%d)", attempt, maxAttempts)
			stats := client.PoolStats()
			fiberlog.Debugf("Redis pool initialized: Hits=%d, Misses=%d, Timeouts=%d, TotalConns=%d, IdleConns=%d",
				stats.Hits, stats.Misses, stats.Timeouts, stats.TotalConns, stats.IdleConns)
			return client, nil
		}

		fiberlog.Warnf("Redis connection failed (attempt %d/%d): %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			delay := time.Duration(attempt) * baseDelay
			fiberlog.Infof("Retrying Redis connection in %v...", delay)
			time.Sleep(delay)
		}
	}

	if err := client.Close(); err != nil {
		fiberlog.Errorf("Failed to close Redis client after connection failures: %v", err)
	}

	return nil, fmt.Errorf("failed to connect to Redis after %d attempts", maxAttempts)
}

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"framium/internal/catalog"
	"framium/internal/config"
	"framium/internal/logger"
	"framium/internal/orchestrator/generation"
	"framium/internal/pgmq"
	"framium/internal/provider"
	"framium/internal/repository"
	"framium/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Initialize DB connection pool
	pool, err := pgxpool.New(context.Background(), cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// Initialize PGMQ client
	pgmqClient := pgmq.New(pool)
	logger.Info().Msg("PGMQ client initialized")

	// Build provider adapters for the configured providers
	timeout := time.Duration(cfg.ProviderTimeoutSec) * time.Second
	var adapters []provider.Adapter
	if cfg.OpenAIAPIKey != "" {
		a, err := provider.NewOpenAIAdapter(provider.OpenAIOptions{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Timeout: timeout})
		if err != nil {
			logger.Fatal().Msgf("Failed to build OpenAI adapter: %v", err)
		}
		adapters = append(adapters, a)
	}
	if cfg.AnthropicAPIKey != "" {
		a, err := provider.NewAnthropicAdapter(provider.AnthropicOptions{APIKey: cfg.AnthropicAPIKey, BaseURL: cfg.AnthropicBaseURL, Timeout: timeout})
		if err != nil {
			logger.Fatal().Msgf("Failed to build Anthropic adapter: %v", err)
		}
		adapters = append(adapters, a)
	}
	if cfg.GoogleAPIKey != "" {
		a, err := provider.NewGoogleAdapter(provider.GoogleOptions{APIKey: cfg.GoogleAPIKey, BaseURL: cfg.GoogleBaseURL, Timeout: timeout})
		if err != nil {
			logger.Fatal().Msgf("Failed to build Google adapter: %v", err)
		}
		adapters = append(adapters, a)
	}

	// Wire the completion pipeline the worker runs tasks through
	cat := catalog.Default()
	userRepo := repository.NewUserRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	quota := service.NewQuotaGuard(usageRepo, cat)
	chatSvc := service.NewChatService(userRepo, usageRepo, quota, provider.NewRouter(adapters...), cat, catalog.DefaultPricing(), catalog.DefaultModels(), logger)
	taskSvc := service.NewTaskService(taskRepo, chatSvc, cat, pgmqClient, cfg.GenerationQueueName, logger)

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := generation.Run(ctx, logger, cfg, pgmqClient, taskSvc); err != nil {
		logger.Fatal().Msgf("generation worker failed: %v", err)
	}

	logger.Info().Msg("generation worker stopped gracefully")
}

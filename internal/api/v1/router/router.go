package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"framium/internal/api/v1/handler"
	"framium/internal/catalog"
	"framium/internal/config"
	"framium/internal/middleware"
	"framium/internal/pgmq"
	"framium/internal/provider"
	"framium/internal/repository"
	"framium/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the full HTTP handler chain together with the database pool
// it holds. The caller owns closing the pool.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	// 1. Open DB connection pool
	dsn := cfg.DBConnectionString
	// Local Postgres typically runs without SSL; production connection
	// strings carry their own sslmode.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
		dsn += separator + "sslmode=disable"
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse DB connection string")
		return nil, nil, err
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection pool")
		return nil, nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 3. Build provider adapters. Only providers with a configured key are
	// registered; requests for the rest fail with an unsupported-model error.
	timeout := time.Duration(cfg.ProviderTimeoutSec) * time.Second
	var adapters []provider.Adapter
	if cfg.OpenAIAPIKey != "" {
		a, err := provider.NewOpenAIAdapter(provider.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: timeout,
		})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.AnthropicAPIKey != "" {
		a, err := provider.NewAnthropicAdapter(provider.AnthropicOptions{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Timeout: timeout,
		})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.GoogleAPIKey != "" {
		a, err := provider.NewGoogleAdapter(provider.GoogleOptions{
			APIKey:  cfg.GoogleAPIKey,
			BaseURL: cfg.GoogleBaseURL,
			Timeout: timeout,
		})
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		adapters = append(adapters, a)
	}
	providerRouter := provider.NewRouter(adapters...)

	// 4. Catalog, pricing and model tables
	cat := catalog.Default()
	pricing := catalog.DefaultPricing()
	models := catalog.DefaultModels()

	// 5. Initialize queue client, repositories, services, handlers
	queueClient := pgmq.New(pool)

	userRepo := repository.NewUserRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)

	quota := service.NewQuotaGuard(usageRepo, cat)
	chatSvc := service.NewChatService(userRepo, usageRepo, quota, providerRouter, cat, pricing, models, logger)

	var stripeSvc *service.StripeService
	if cfg.StripeSecretKey != "" {
		stripeSvc = service.NewStripeService(cfg, userRepo, logger)
	} else {
		logger.Warn().Msg("Stripe secret key not configured, billing disabled")
	}
	userSvc := service.NewUserService(userRepo, usageRepo, cat, stripeSvc, logger)
	taskSvc := service.NewTaskService(taskRepo, chatSvc, cat, queueClient, cfg.GenerationQueueName, logger)

	chatHandler := handler.NewChatHandler(chatSvc, validate, logger)
	userHandler := handler.NewUserHandler(userSvc, validate)
	taskHandler := handler.NewTaskHandler(taskSvc, validate)

	// 6. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	// 7. Create ServeMux router with API v1 mounted under /v1
	apiV1Mux := http.NewServeMux()
	chatHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	taskHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	if stripeSvc != nil {
		billingHandler := handler.NewBillingHandler(stripeSvc, validate, logger)
		billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 8. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger, c.Handler(mux)), pool, nil
}

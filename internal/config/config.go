package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret          string `envconfig:"SUPABASE_JWT_SECRET" required:"true"`

	// LLM provider credentials. An adapter is only registered for providers
	// with a non-empty key.
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	GoogleAPIKey    string `envconfig:"GOOGLE_API_KEY"`

	// Optional base URL overrides, used by local mocks.
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL"`
	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL"`
	GoogleBaseURL    string `envconfig:"GOOGLE_BASE_URL"`

	ProviderTimeoutSec int `envconfig:"PROVIDER_TIMEOUT_SEC" default:"60"`

	// Stripe settings
	StripeSecretKey       string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePortalReturnURL string `envconfig:"STRIPE_PORTAL_RETURN_URL" default:"http://localhost:3000/account"`
	StripePriceMax        string `envconfig:"STRIPE_PRICE_MAX"`
	StripePriceBeast      string `envconfig:"STRIPE_PRICE_BEAST"`
	StripePriceUltimate   string `envconfig:"STRIPE_PRICE_ULTIMATE"`

	// Generation worker settings
	GenerationQueueName           string `envconfig:"GENERATION_QUEUE_NAME" default:"generation_queue"`
	GenerationPollTimeoutSec      int    `envconfig:"GENERATION_POLL_TIMEOUT_SEC" default:"30"`
	GenerationPollMaxMsg          int    `envconfig:"GENERATION_POLL_MAX_MSG" default:"1"`
	GenerationMaxRetries          int    `envconfig:"GENERATION_MAX_RETRIES" default:"3"`
	GenerationBackoffInitialSec   int    `envconfig:"GENERATION_BACKOFF_INITIAL_SEC" default:"1"`
	GenerationBackoffMaxSec       int    `envconfig:"GENERATION_BACKOFF_MAX_SEC" default:"30"`
	GenerationDeadLetterQueueName string `envconfig:"GENERATION_DEAD_LETTER_QUEUE_NAME" default:"generation_queue_dlq"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Persistence. Either variable enables Postgres; without one every
	// persistence action degrades to its empty result.
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	NetlifyDatabaseURL string `envconfig:"NETLIFY_DATABASE_URL"`
	HistoryLimit       int    `envconfig:"HISTORY_LIMIT" default:"50"`

	// Generative model
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GeminiModel  string `envconfig:"GEMINI_MODEL" default:"gemini-3-flash-preview"`
	AITimeoutSec int    `envconfig:"AI_TIMEOUT_SEC" default:"25"`

	// Page reader bridge used by research
	ScraperBaseURL   string `envconfig:"SCRAPER_BASE_URL" default:"https://r.jina.ai/"`
	ScrapeTimeoutSec int    `envconfig:"SCRAPE_TIMEOUT_SEC" default:"7"`

	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	// Stripe
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripePriceID       string `envconfig:"STRIPE_PRICE_ID"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripeReturnURL     string `envconfig:"STRIPE_RETURN_URL" default:"http://localhost:5173"`

	// Identity provider
	FirebaseProjectID string `envconfig:"FIREBASE_PROJECT_ID"`

	// Optional infrastructure
	RedisURL             string `envconfig:"REDIS_URL"`
	PubSubProjectID      string `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubAnalyticsTopic string `envconfig:"PUBSUB_ANALYTICS_TOPIC"`
	PubSubEmulatorHost   string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DSN returns the configured Postgres connection string, if any.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.NetlifyDatabaseURL
}

func (c *Config) PersistenceEnabled() bool { return c.DSN() != "" }

func (c *Config) AIEnabled() bool { return c.GeminiAPIKey != "" }

// PaymentsEnabled reports whether checkout sessions can be created.
func (c *Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != "" && c.StripePriceID != ""
}

// WebhookEnabled reports whether inbound payment events can be verified.
func (c *Config) WebhookEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSec) * time.Second
}

func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutSec) * time.Second
}

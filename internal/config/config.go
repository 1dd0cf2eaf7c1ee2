// Package config defines the configuration surface for the buzzflix
// orchestration service. Configuration is loaded once at process start and
// is immutable thereafter; there is no runtime reconfiguration.
//
// Values come from the OS environment, optionally seeded by a .env file
// (which never overrides existing variables). Any missing required value or
// invalid format fails startup immediately.
package config

import (
	"time"

	"github.com/buzzflixai/buzzflix-droplet/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Database  DatabaseConfig
	Render    RenderConfig
	Scheduler SchedulerConfig
	Billing   BillingConfig
	Email     EmailConfig
	TikTok    TikTokConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"5000"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// RenderConfig holds the render Lambda endpoint and dispatch tuning.
//
// The timeout is intentionally short: the Lambda accepts-and-detaches faster
// than it responds, and the dispatcher treats a client timeout as success.
type RenderConfig struct {
	LambdaEndpoint string        `envconfig:"AWS_LAMBDA_ENDPOINT" validate:"required,url"`
	Timeout        time.Duration `envconfig:"RENDER_DISPATCH_TIMEOUT" default:"1s"`
	Workers        int           `envconfig:"RENDER_DISPATCH_WORKERS" default:"10"`
}

// SchedulerConfig holds the background loop cadences.
type SchedulerConfig struct {
	TickInterval    time.Duration `envconfig:"SCHEDULER_TICK_INTERVAL" default:"300s"`
	RefreshInterval time.Duration `envconfig:"TOKEN_REFRESH_INTERVAL" default:"1h"`
	// RefreshWindow is how far ahead of expiry a token is considered due
	// for rotation.
	RefreshWindow time.Duration `envconfig:"TOKEN_REFRESH_WINDOW" default:"2h"`
}

// BillingConfig holds Stripe webhook credentials and the price IDs that map
// subscription events onto plan tiers.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`

	PriceStarter string `envconfig:"STRIPE_PRICE_STARTER"`
	PriceGrowth  string `envconfig:"STRIPE_PRICE_GROWTH"`
	PriceScale   string `envconfig:"STRIPE_PRICE_SCALE"`
}

// EmailConfig holds SMTP delivery settings for trigger notifications.
// Email is optional: when Host is empty the notifier is disabled.
type EmailConfig struct {
	Host        string       `envconfig:"SMTP_HOST"`
	Port        int          `envconfig:"SMTP_PORT" default:"465"`
	Username    string       `envconfig:"SMTP_USERNAME"`
	Password    SecretString `envconfig:"SMTP_PASSWORD"`
	FromAddress string       `envconfig:"EMAIL_FROM_ADDRESS" default:"notifications@buzzflix.ai"`
	FromName    string       `envconfig:"EMAIL_FROM_NAME" default:"Buzzflix"`
}

// TikTokConfig holds the OAuth client credentials for token refresh.
type TikTokConfig struct {
	ClientKey    string       `envconfig:"TIKTOK_CLIENT_KEY"`
	ClientSecret SecretString `envconfig:"TIKTOK_CLIENT_SECRET"`
}

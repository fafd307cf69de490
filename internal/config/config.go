// Package config defines the global configuration structure for the Meterboard
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup.
package config

import (
	"time"

	"meterboard/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the Meterboard service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"meterboard-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Platform PlatformConfig
	Billing  BillingConfig
	Security SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
// The database stores only the deleted-user audit log.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// PlatformConfig holds the SaaS control-plane API endpoint and credentials.
// Every outbound call to the platform (auth, pricing, metering) uses these.
type PlatformConfig struct {
	AuthBaseURL    string        `envconfig:"PLATFORM_AUTH_BASE_URL" validate:"required,url"`
	PricingBaseURL string        `envconfig:"PLATFORM_PRICING_BASE_URL" validate:"required,url"`
	APIKey         SecretString  `envconfig:"PLATFORM_API_KEY" validate:"required"`
	Timeout        time.Duration `envconfig:"PLATFORM_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"PLATFORM_MAX_RETRIES" default:"3"`
}

// BillingConfig holds billing-engine tuning.
type BillingConfig struct {
	// Timezone is the fixed zone all plan-period arithmetic is done in.
	// Period boundaries fall on local calendar instants of this zone.
	Timezone string `envconfig:"BILLING_TIMEZONE" default:"Asia/Tokyo"`
	// UsageFetchParallelism bounds concurrent usage-count fetches per report.
	UsageFetchParallelism int `envconfig:"BILLING_USAGE_FETCH_PARALLELISM" default:"4"`
}

// SecurityConfig holds CORS and cookie settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// SecureCookies controls the Secure flag on the refresh-token cookie.
	SecureCookies bool `envconfig:"SECURE_COOKIES" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// Package config defines the global configuration structure for the RideCast
// service. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"ridecast/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the RideCast service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require
// (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"ridecast"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Providers     ProvidersConfig
	Resilience    ResilienceConfig
	Forecast      ForecastConfig
	Email         EmailConfig
	Auth          AuthConfig
	Schedule      ScheduleConfig
	Observability ObservabilityConfig
	Feature       FeatureConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration for the profile API.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`

	// RateLimitPerMinute caps requests per API key per minute. Zero disables
	// rate limiting.
	RateLimitPerMinute int `envconfig:"SERVER_RATE_LIMIT_PER_MINUTE" default:"120" validate:"gte=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`     // Fail fast when pool exhausted
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"` // Detect dead connections during failover
}

// ProvidersConfig holds upstream weather API credentials and endpoints.
// A provider whose key is absent still starts; its fetches fail and are
// absorbed by the degradation path.
type ProvidersConfig struct {
	OpenWeatherAPIKey  SecretString `envconfig:"OPENWEATHER_API_KEY"`
	OpenWeatherBaseURL string       `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"url"`

	WeatherAPIKey     SecretString `envconfig:"WEATHERAPI_API_KEY"`
	WeatherAPIBaseURL string       `envconfig:"WEATHERAPI_BASE_URL" default:"https://api.weatherapi.com/v1" validate:"url"`

	TomorrowAPIKey  SecretString `envconfig:"TOMORROW_API_KEY"`
	TomorrowBaseURL string       `envconfig:"TOMORROW_BASE_URL" default:"https://api.tomorrow.io/v4" validate:"url"`

	NOAABaseURL string `envconfig:"NOAA_BASE_URL" default:"https://api.weather.gov" validate:"url"`

	// NOAA rejects requests without a descriptive User-Agent.
	UserAgent string `envconfig:"PROVIDER_USER_AGENT" default:"ridecast/1.0 (ops@ridecast.dev)"`
}

// ResilienceConfig tunes retry, backoff, and fallback behavior for upstream
// weather fetches.
type ResilienceConfig struct {
	EnableRetries       bool          `envconfig:"RESILIENCE_ENABLE_RETRIES" default:"true"`
	MaxRetries          int           `envconfig:"RESILIENCE_MAX_RETRIES" default:"2" validate:"gte=0"`
	BaseDelay           time.Duration `envconfig:"RESILIENCE_BASE_DELAY" default:"1s" validate:"gt=0,ltefield=MaxDelay"`
	MaxDelay            time.Duration `envconfig:"RESILIENCE_MAX_DELAY" default:"10s" validate:"gt=0"`
	RequestTimeout      time.Duration `envconfig:"RESILIENCE_REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	EnableFallback      bool          `envconfig:"RESILIENCE_ENABLE_FALLBACK" default:"true"`
	FallbackWindowHours int           `envconfig:"RESILIENCE_FALLBACK_WINDOW_HOURS" default:"3" validate:"gte=0"`
	EnabledProviders    []string      `envconfig:"PROVIDERS_ENABLED" default:"openweather,weatherapi,tomorrowio,noaa" validate:"dive,oneof=openweather weatherapi tomorrowio noaa"`
}

// EnabledProviderIDs converts the configured provider names into typed IDs.
// Unknown names are rejected during validation, so no filtering happens here.
func (r ResilienceConfig) EnabledProviderIDs() []types.ProviderID {
	ids := make([]types.ProviderID, 0, len(r.EnabledProviders))
	for _, name := range r.EnabledProviders {
		ids = append(ids, types.ProviderID(name))
	}
	return ids
}

// ProviderEnabled reports whether the given provider participates in collection.
func (r ResilienceConfig) ProviderEnabled(id types.ProviderID) bool {
	for _, name := range r.EnabledProviders {
		if types.ProviderID(name) == id {
			return true
		}
	}
	return false
}

// ForecastConfig bounds the forecast collection stage.
type ForecastConfig struct {
	MaxConcurrentFetches int `envconfig:"FORECAST_MAX_CONCURRENT" default:"8" validate:"gte=1"`
}

// EmailConfig holds SMTP delivery settings for forecast recommendations.
type EmailConfig struct {
	SMTPHost     string       `envconfig:"SMTP_HOST" validate:"required"`
	SMTPPort     int          `envconfig:"SMTP_PORT" default:"587" validate:"gte=1,lte=65535"`
	SMTPUsername string       `envconfig:"SMTP_USERNAME"`
	SMTPPassword SecretString `envconfig:"SMTP_PASSWORD"`

	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"forecasts@ridecast.dev" validate:"email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"RideCast"`

	UseStartTLS bool          `envconfig:"SMTP_STARTTLS" default:"true"`
	DialTimeout time.Duration `envconfig:"SMTP_DIAL_TIMEOUT" default:"10s" validate:"gt=0"`
}

// AuthConfig holds API authentication material. Keys are provisioned as
// bcrypt hashes so a leaked environment never exposes a usable credential.
type AuthConfig struct {
	// APIKeys maps key identifier -> bcrypt hash of the key secret,
	// e.g. API_KEYS="ops:$2a$10$...,ci:$2a$10$...".
	APIKeys map[string]string `envconfig:"API_KEYS"`
}

// ScheduleConfig controls when the daemon runs evaluation cycles. Two runs
// per day: one ahead of the ride in, one ahead of the ride back.
type ScheduleConfig struct {
	MorningCron string        `envconfig:"SCHEDULE_MORNING_CRON" default:"0 5 * * *" validate:"cron"`
	EveningCron string        `envconfig:"SCHEDULE_EVENING_CRON" default:"0 14 * * *" validate:"cron"`
	Timezone    string        `envconfig:"SCHEDULE_TIMEZONE" default:"America/New_York" validate:"timezone"`
	RunTimeout  time.Duration `envconfig:"SCHEDULE_RUN_TIMEOUT" default:"10m" validate:"gt=0"`

	// MaintenanceCron runs retention pruning for fact usage history.
	MaintenanceCron string `envconfig:"SCHEDULE_MAINTENANCE_CRON" default:"0 3 * * *" validate:"cron"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"ridecast"`
}

// FeatureConfig holds emergency kill switches for system capabilities.
type FeatureConfig struct {
	EnableEmail    bool `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
	EnableFunFacts bool `envconfig:"FEATURE_ENABLE_FUN_FACTS" default:"true"`
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

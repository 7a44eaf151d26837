// Package config defines the global configuration structure for the climarisk
// engine. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved from the OS environment, with a .env file as a
// lower-priority source for local development. Any missing required value or
// invalid format causes the application to fail immediately on startup.
package config

import (
	"time"
)

// Config is the top-level configuration struct for the engine. It is
// populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"climarisk-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server   ServerConfig
	Database DatabaseConfig
	Archive  ArchiveConfig
	Geocode  GeocodeConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// ArchiveConfig holds the historical climate-data archive collaborator
// settings. The timeout matches the archive's own request budget; the
// accessor applies exactly one retry with backoff on timeout before
// surfacing the failure.
type ArchiveConfig struct {
	BaseURL      string        `envconfig:"ARCHIVE_BASE_URL" default:"https://power.larc.nasa.gov/api/temporal/daily/point" validate:"required,url"`
	Timeout      time.Duration `envconfig:"ARCHIVE_TIMEOUT" default:"30s"`
	RetryBackoff time.Duration `envconfig:"ARCHIVE_RETRY_BACKOFF" default:"2s"`
	UserAgent    string        `envconfig:"ARCHIVE_USER_AGENT" default:"climarisk/1.0"`
}

// GeocodeConfig holds the geocoding collaborator settings.
type GeocodeConfig struct {
	BaseURL   string        `envconfig:"GEOCODE_BASE_URL" default:"https://nominatim.openstreetmap.org/search" validate:"required,url"`
	Timeout   time.Duration `envconfig:"GEOCODE_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"GEOCODE_USER_AGENT" default:"climarisk/1.0"`
}

// EngineConfig holds inference tuning parameters.
type EngineConfig struct {
	// ClassifierMode selects empirical or trained-model probability
	// estimation. Model mode refuses to start without stored artifacts.
	ClassifierMode string `envconfig:"ENGINE_CLASSIFIER_MODE" default:"empirical" validate:"oneof=empirical model"`

	// YearSpan is how many historical years the analog window draws from.
	YearSpan int `envconfig:"ENGINE_YEAR_SPAN" default:"15" validate:"min=1,max=40"`

	// DayTolerance widens the analog window to day-of-year ± tolerance.
	DayTolerance int `envconfig:"ENGINE_DAY_TOLERANCE" default:"3" validate:"min=0,max=15"`

	// MinSampleYears below which results are flagged low-confidence.
	MinSampleYears int `envconfig:"ENGINE_MIN_SAMPLE_YEARS" default:"5" validate:"min=1"`

	// TargetSampleYears is the confidence baseline (n/target capped at 1).
	TargetSampleYears int `envconfig:"ENGINE_TARGET_SAMPLE_YEARS" default:"10" validate:"min=1"`

	// CacheTTL bounds how long a stored prediction is served.
	CacheTTL time.Duration `envconfig:"ENGINE_CACHE_TTL" default:"6h"`

	// MaxRangeDays bounds the date-range analyzer span.
	MaxRangeDays int `envconfig:"ENGINE_MAX_RANGE_DAYS" default:"30" validate:"min=1,max=90"`

	// RangeConcurrency bounds parallel single-day computations in the
	// date-range analyzer.
	RangeConcurrency int `envconfig:"ENGINE_RANGE_CONCURRENCY" default:"4" validate:"min=1,max=16"`
}

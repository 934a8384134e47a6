package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host string `envconfig:"HOST" default:"localhost"`
	Port int    `envconfig:"PORT" default:"4101"`

	// Session cache
	DatabasePath        string `envconfig:"DATABASE_PATH" default:"./sessions.db"`
	SessionCacheEnabled bool   `envconfig:"SESSION_CACHE_ENABLED" default:"true"`

	// Garmin Connect account and endpoints
	GarminUser     string        `envconfig:"GARMIN_USER" required:"true"`
	GarminPassword string        `envconfig:"GARMIN_PWD" required:"true"`
	GarminAPIURL   string        `envconfig:"GARMIN_API_URL" default:"https://connectapi.garmin.com"`
	GarminSSOURL   string        `envconfig:"GARMIN_SSO_URL" default:"https://connectapi.garmin.com/oauth-service"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	// Listing walk defaults
	RemoteDateFilter bool `envconfig:"REMOTE_DATE_FILTER" default:"false"`
	PageSize         int  `envconfig:"PAGE_SIZE" default:"50"`
	MaxPages         int  `envconfig:"MAX_PAGES" default:"0"`

	// Internal API configuration
	InternalAPIKey string `envconfig:"INTERNAL_API_KEY"`

	// Logging configuration
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Metrics configuration
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsHost    string `envconfig:"METRICS_HOST" default:"localhost"`
	MetricsPort    int    `envconfig:"METRICS_PORT" default:"9090"`
}

// Load reads configuration from environment variables
// It fails fast if required variables are missing or values are out of range
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if c.MetricsEnabled && (c.MetricsPort < 1 || c.MetricsPort > 65535) {
		problems = append(problems, fmt.Sprintf("METRICS_PORT %d out of range", c.MetricsPort))
	}
	if c.PageSize < 1 || c.PageSize > 200 {
		problems = append(problems, fmt.Sprintf("PAGE_SIZE %d not in 1..200", c.PageSize))
	}
	if c.MaxPages < 0 {
		problems = append(problems, fmt.Sprintf("MAX_PAGES %d is negative", c.MaxPages))
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireAPIKey fails when the internal API key needed by the HTTP server
// is not set
func (c *Config) RequireAPIKey() error {
	if c.InternalAPIKey == "" {
		return fmt.Errorf("missing required environment variables: [INTERNAL_API_KEY]")
	}
	return nil
}

package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigWithDefaults(t *testing.T) {
	// Set only required env vars
	setTestEnv(t, map[string]string{
		"GARMIN_USER": "rider@example.com",
		"GARMIN_PWD":  "secret",
	})

	config, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Host)
	}
	if config.Port != 4101 {
		t.Errorf("Expected default port 4101, got %d", config.Port)
	}
	if config.DatabasePath != "./sessions.db" {
		t.Errorf("Expected default database path './sessions.db', got %s", config.DatabasePath)
	}
	if !config.SessionCacheEnabled {
		t.Error("Expected session cache to be enabled by default")
	}
	if config.RemoteDateFilter {
		t.Error("Expected remote date filter to be disabled by default")
	}
	if config.PageSize != 50 {
		t.Errorf("Expected default page size 50, got %d", config.PageSize)
	}
	if config.MaxPages != 0 {
		t.Errorf("Expected unlimited pages by default, got %d", config.MaxPages)
	}
	if config.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", config.RequestTimeout)
	}
	if config.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", config.LogLevel)
	}
	if config.GarminUser != "rider@example.com" {
		t.Errorf("Expected GARMIN_USER 'rider@example.com', got %s", config.GarminUser)
	}
	if err := config.RequireAPIKey(); err == nil {
		t.Error("Expected RequireAPIKey to fail without INTERNAL_API_KEY")
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	setTestEnv(t, map[string]string{
		"HOST":                  "0.0.0.0",
		"PORT":                  "8080",
		"DATABASE_PATH":         "/tmp/test.db",
		"GARMIN_USER":           "rider@example.com",
		"GARMIN_PWD":            "secret",
		"GARMIN_API_URL":        "http://localhost:9999",
		"SESSION_CACHE_ENABLED": "false",
		"REMOTE_DATE_FILTER":    "true",
		"PAGE_SIZE":             "100",
		"MAX_PAGES":             "20",
		"REQUEST_TIMEOUT":       "5s",
		"INTERNAL_API_KEY":      "custom_api_key",
		"LOG_LEVEL":             "debug",
		"METRICS_ENABLED":       "true",
		"METRICS_PORT":          "9191",
	})

	config, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.Host != "0.0.0.0" {
		t.Errorf("Expected host '0.0.0.0', got %s", config.Host)
	}
	if config.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", config.Port)
	}
	if config.GarminAPIURL != "http://localhost:9999" {
		t.Errorf("Expected custom API URL, got %s", config.GarminAPIURL)
	}
	if config.SessionCacheEnabled {
		t.Error("Expected session cache to be disabled")
	}
	if !config.RemoteDateFilter {
		t.Error("Expected remote date filter to be enabled")
	}
	if config.PageSize != 100 || config.MaxPages != 20 {
		t.Errorf("Expected page size 100 and max pages 20, got %d and %d", config.PageSize, config.MaxPages)
	}
	if config.RequestTimeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", config.RequestTimeout)
	}
	if !config.MetricsEnabled || config.MetricsPort != 9191 {
		t.Errorf("Expected metrics on port 9191, got %v %d", config.MetricsEnabled, config.MetricsPort)
	}
	if err := config.RequireAPIKey(); err != nil {
		t.Errorf("Expected API key to be present, got %v", err)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setTestEnv(t, map[string]string{
		"GARMIN_USER": "rider@example.com",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error for missing GARMIN_PWD")
	}
	if !strings.Contains(err.Error(), "GARMIN_PWD") {
		t.Errorf("Expected error to name GARMIN_PWD, got %v", err)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "PORT", "70000"},
		{"page size", "PAGE_SIZE", "500"},
		{"max pages", "MAX_PAGES", "-1"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"timeout", "REQUEST_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setTestEnv(t, map[string]string{
				"GARMIN_USER": "rider@example.com",
				"GARMIN_PWD":  "secret",
				tt.key:        tt.val,
			})

			_, err := Load()
			if err == nil {
				t.Fatalf("Expected error for %s=%s", tt.key, tt.val)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Expected error to mention %s, got %v", tt.key, err)
			}
		})
	}
}

func TestLoadConfigMalformedValue(t *testing.T) {
	setTestEnv(t, map[string]string{
		"GARMIN_USER": "rider@example.com",
		"GARMIN_PWD":  "secret",
		"PORT":        "not-a-number",
	})

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for malformed PORT")
	}
}

// Helper function to set environment variables for a test
func setTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	// Clear all relevant env vars first
	clearTestEnv(t)

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// Helper function to clear all config-related environment variables
func clearTestEnv(t *testing.T) {
	t.Helper()

	envVars := []string{
		"HOST", "PORT", "DATABASE_PATH", "SESSION_CACHE_ENABLED",
		"GARMIN_USER", "GARMIN_PWD", "GARMIN_API_URL", "GARMIN_SSO_URL",
		"REQUEST_TIMEOUT", "REMOTE_DATE_FILTER", "PAGE_SIZE", "MAX_PAGES",
		"INTERNAL_API_KEY", "LOG_LEVEL",
		"METRICS_ENABLED", "METRICS_HOST", "METRICS_PORT",
	}

	for _, key := range envVars {
		if value, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, value) })
		}
	}
}

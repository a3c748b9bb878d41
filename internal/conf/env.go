// env.go - Environment variable configuration and validation for imagefinder
package conf

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "IMAGEFINDER_DEBUG", validateEnvBool},

		// Hosts
		{"supplier.baseurl", "IMAGEFINDER_SUPPLIER_BASEURL", validateEnvURL},
		{"mediasearch.baseurl", "IMAGEFINDER_MEDIASEARCH_BASEURL", validateEnvURL},

		// Resolver
		{"resolver.primaryworkers", "IMAGEFINDER_RESOLVER_PRIMARYWORKERS", validateEnvWorkers},
		{"resolver.fallbackworkers", "IMAGEFINDER_RESOLVER_FALLBACKWORKERS", validateEnvWorkers},
		{"resolver.timeout", "IMAGEFINDER_RESOLVER_TIMEOUT", validateEnvDuration},
		{"resolver.useragent", "IMAGEFINDER_RESOLVER_USERAGENT", nil},
		{"resolver.fallbackmode", "IMAGEFINDER_RESOLVER_FALLBACKMODE", validateEnvOneOf(FallbackModeParallel, FallbackModeSequential)},

		// Catalog and output
		{"catalog.duplicates", "IMAGEFINDER_CATALOG_DUPLICATES", validateEnvOneOf(DuplicatesError, DuplicatesLast)},
		{"metrics.textfile", "IMAGEFINDER_METRICS_TEXTFILE", nil},

		// Telemetry
		{"telemetry.sentrydsn", "IMAGEFINDER_SENTRY_DSN", validateEnvURL},
		{"telemetry.environment", "IMAGEFINDER_SENTRY_ENVIRONMENT", nil},

		// Logging
		{"logging.console.level", "IMAGEFINDER_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("URL must be absolute with scheme and host, got '%s'", value)
	}
	return nil
}

// maxWorkers bounds worker settings; higher values only open more sockets
const maxWorkers = 1000

func validateEnvWorkers(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid worker count: %w", err)
	}
	if n < 1 || n > maxWorkers {
		return fmt.Errorf("worker count must be between 1 and %d, got %d", maxWorkers, n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	return validateEnvOneOf("trace", "debug", "info", "warn", "error")(strings.ToLower(value))
}

// validateEnvOneOf returns a validator accepting only the listed values,
// compared case-insensitively
func validateEnvOneOf(allowed ...string) func(string) error {
	return func(value string) error {
		if slices.Contains(allowed, strings.ToLower(strings.TrimSpace(value))) {
			return nil
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

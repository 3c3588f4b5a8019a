package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateEndpoint validates a project endpoint URL
func (v *Validator) ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("project endpoint cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid project endpoint: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("invalid project endpoint scheme %q (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid project endpoint: missing host")
	}

	return nil
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, vl := range validLevels {
		if strings.ToLower(level) == vl {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be: debug, info, warn, error)", level)
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d (must be between 1 and 65535)", port)
	}
	return nil
}

// ValidateRedisURL validates an optional redis URL
func (v *Validator) ValidateRedisURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("invalid redis url scheme %q (must be redis or rediss)", u.Scheme)
	}
	return nil
}

// ValidateConfig validates the entire configuration
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateEndpoint(cfg.Project.Endpoint); err != nil {
		errors = append(errors, err)
	}

	if cfg.Project.APIVersion == "" {
		errors = append(errors, fmt.Errorf("project api version cannot be empty"))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
		errors = append(errors, err)
	}

	if cfg.Gateway.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Errorf("rate limit per minute cannot be negative"))
	}

	if err := v.ValidateRedisURL(cfg.Session.RedisURL); err != nil {
		errors = append(errors, err)
	}

	if cfg.Session.TTL <= 0 {
		errors = append(errors, fmt.Errorf("session ttl must be positive"))
	}

	return errors
}

package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main agentgate configuration
type Config struct {
	// Remote AI project
	Project ProjectConfig `json:"project" mapstructure:"project"`

	// Agent to serve
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// HTTP gateway
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Browser session to thread bindings
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Production disables .env loading and pretty console logs
	Production bool `json:"production" mapstructure:"-"`
}

// ProjectConfig holds the remote AI project settings
type ProjectConfig struct {
	Endpoint   string `json:"endpoint" mapstructure:"endpoint"`
	APIVersion string `json:"api_version" mapstructure:"api_version"`
}

// AgentConfig identifies the remote agent
type AgentConfig struct {
	ID   string `json:"id" mapstructure:"id"`     // optional, tried first
	Name string `json:"name" mapstructure:"name"` // required, fallback search
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// GatewayConfig holds HTTP server configuration
type GatewayConfig struct {
	Port               int    `json:"port" mapstructure:"port"`
	Host               string `json:"host" mapstructure:"host"`
	StaticDir          string `json:"static_dir" mapstructure:"static_dir"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"` // 0 disables
}

// SessionConfig holds thread binding storage configuration
type SessionConfig struct {
	RedisURL string        `json:"redis_url" mapstructure:"redis_url"` // empty uses the in-memory store
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
}

// TracingConfig holds Azure Monitor tracing settings
type TracingConfig struct {
	Enabled bool `json:"enabled" mapstructure:"-"`
}

// DefaultAPIVersion is the project API version used when none is configured
const DefaultAPIVersion = "2025-05-15-preview"

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			APIVersion: DefaultAPIVersion,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Port:               50505,
			Host:               "0.0.0.0",
			StaticDir:          "static",
			RateLimitPerMinute: 0,
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
	}
}

// String returns the config as indented JSON
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Project.Endpoint == "" {
		return fmt.Errorf("AZURE_EXISTING_AIPROJECT_ENDPOINT is required")
	}
	if c.Agent.Name == "" {
		return fmt.Errorf("AZURE_AI_AGENT_NAME is required")
	}

	errs := NewValidator().ValidateConfig(c)
	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}

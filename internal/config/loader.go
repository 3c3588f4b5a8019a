package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// envBindings maps config keys to the environment variables they are read from
var envBindings = map[string]string{
	"project.endpoint":              "AZURE_EXISTING_AIPROJECT_ENDPOINT",
	"project.api_version":           "AZURE_AI_PROJECT_API_VERSION",
	"agent.id":                      "AZURE_EXISTING_AGENT_ID",
	"agent.name":                    "AZURE_AI_AGENT_NAME",
	"logging.level":                 "LOG_LEVEL",
	"logging.file":                  "APP_LOG_FILE",
	"gateway.port":                  "PORT",
	"gateway.host":                  "HOST",
	"gateway.static_dir":            "STATIC_DIR",
	"gateway.rate_limit_per_minute": "RATE_LIMIT_PER_MINUTE",
	"session.redis_url":             "REDIS_URL",
	"session.ttl":                   "SESSION_TTL",
	"tracing.enabled":               "ENABLE_AZURE_MONITOR_TRACING",
}

// Loader handles configuration loading
type Loader struct {
	envFile string
}

// NewLoader creates a new config loader. envFile is the dotenv file applied
// outside production; empty means ".env" in the working directory.
func NewLoader(envFile string) *Loader {
	return &Loader{
		envFile: envFile,
	}
}

// Load reads the configuration from the environment
func (l *Loader) Load() (*Config, error) {
	production := os.Getenv("RUNNING_IN_PRODUCTION") != ""

	// Outside production a .env file overrides the process environment
	if !production {
		if err := l.loadEnvFile(); err != nil {
			return nil, err
		}
	}

	defaults := DefaultConfig()

	// Setup viper
	v := viper.New()
	v.SetDefault("project.api_version", defaults.Project.APIVersion)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size", defaults.Logging.MaxSize)
	v.SetDefault("logging.max_age", defaults.Logging.MaxAge)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
	v.SetDefault("logging.redaction", defaults.Logging.Redaction)
	v.SetDefault("gateway.port", defaults.Gateway.Port)
	v.SetDefault("gateway.host", defaults.Gateway.Host)
	v.SetDefault("gateway.static_dir", defaults.Gateway.StaticDir)
	v.SetDefault("gateway.rate_limit_per_minute", defaults.Gateway.RateLimitPerMinute)
	v.SetDefault("session.ttl", defaults.Session.TTL)

	// Read environment variables
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Unmarshal into config struct
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Production = production
	cfg.Tracing.Enabled = strings.EqualFold(strings.TrimSpace(v.GetString("tracing.enabled")), "true")
	cfg.Project.Endpoint = strings.TrimSpace(cfg.Project.Endpoint)

	return cfg, nil
}

func (l *Loader) loadEnvFile() error {
	path := l.GetEnvFile()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := gotenv.OverLoad(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// GetEnvFile returns the dotenv file path
func (l *Loader) GetEnvFile() string {
	if l.envFile != "" {
		return l.envFile
	}
	return ".env"
}

// Load is a convenience function that creates a loader and loads the config
func Load(envFile string) (*Config, error) {
	loader := NewLoader(envFile)
	return loader.Load()
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"logLevel"`
	DatabaseURL        string   `yaml:"databaseURL"`
	RAGServiceURL      string   `yaml:"ragServiceURL"`
	RAGTimeoutSeconds  int      `yaml:"ragTimeoutSeconds"`
	JWTSecret          string   `yaml:"jwtSecret"`
	SessionTTLHours    int      `yaml:"sessionTTLHours"`
	RedisAddr          string   `yaml:"redisAddr"`
	RedisPassword      string   `yaml:"redisPassword"`
	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
	TrustedProxies     []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("RAG_SERVICE_URL"); v != "" {
		cfg.RAGServiceURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.RateLimitPerMinute = limit
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SessionTTL returns the configured session lifetime.
func (c FileConfig) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// RAGTimeout returns the answer engine call timeout.
func (c FileConfig) RAGTimeout() time.Duration {
	if c.RAGTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.RAGTimeoutSeconds) * time.Second
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RAGServiceURL == "" {
		return errors.New("config: ragServiceURL is required (set in config.yaml or RAG_SERVICE_URL)")
	}
	if cfg.JWTSecret == "" && cfg.RedisAddr == "" {
		return errors.New("config: jwtSecret or redisAddr is required for sessions")
	}
	return nil
}

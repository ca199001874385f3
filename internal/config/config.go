package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values come from an optional YAML
// file named by CURATOR_CONFIG, then environment variables override them.
type Config struct {
	MongoURI         string        `yaml:"mongoUri"`
	MongoDB          string        `yaml:"mongoDb"`
	RedisAddr        string        `yaml:"redisAddr"` // empty: in-process session store
	HTTPPort         string        `yaml:"httpPort"`
	SessionTTL       time.Duration `yaml:"sessionTtl"`
	SessionCacheSize int           `yaml:"sessionCacheSize"`
	CuratorUsername  string        `yaml:"curatorUsername"`
	CuratorPassword  string        `yaml:"curatorPassword"`
	JWTSecret        string        `yaml:"-"`
	CORSOrigins      string        `yaml:"corsOrigins"`
	LogLevel         string        `yaml:"logLevel"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		MongoURI:         "mongodb://localhost:27017",
		MongoDB:          "huntcurator",
		HTTPPort:         "8080",
		SessionTTL:       24 * time.Hour,
		SessionCacheSize: 256,
		CuratorUsername:  "curator",
		CuratorPassword:  "password123",
		JWTSecret:        "change-me-in-production",
		CORSOrigins:      "*",
		LogLevel:         "info",
	}
}

// Load builds the config from defaults, the YAML file and the environment
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CURATOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDB = getEnv("MONGO_DB", cfg.MongoDB)
	cfg.RedisAddr = strings.TrimPrefix(getEnv("REDIS_URI", cfg.RedisAddr), "redis://")
	cfg.HTTPPort = getEnv("PORT", cfg.HTTPPort)
	cfg.CuratorUsername = getEnv("CURATOR_USERNAME", cfg.CuratorUsername)
	cfg.CuratorPassword = getEnv("CURATOR_PASSWORD", cfg.CuratorPassword)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("SESSION_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("SESSION_CACHE_SIZE must be a positive integer, got %q", v)
		}
		cfg.SessionCacheSize = n
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

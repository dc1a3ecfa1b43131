package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HTTPPort          string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisReadyTimeout time.Duration
	SecretKey         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	AdminUser         string
	AdminEmail        string
	AdminPassword     string
	AuditInterval     time.Duration
	LogLevel          string
	LogFormat         string
}

// LoadEnvFile reads KEY=VALUE settings from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("settings file not found, using environment only", "path", path)
			return nil
		}
		return fmt.Errorf("loading settings file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		HTTPPort:          envOrDefault("HTTP_PORT", "8080"),
		DatabaseURL:       envOrDefault("DATABASE_URL", ""),
		RedisAddr:         envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     envOrDefault("REDIS_PASSWORD", ""),
		RedisDB:           envOrDefaultInt("REDIS_DB", 0),
		RedisReadyTimeout: envOrDefaultDuration("REDIS_READY_TIMEOUT", 60*time.Second),
		SecretKey:         envOrDefault("SECRET_KEY", ""),
		AccessTokenTTL:    envOrDefaultDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
		RefreshTokenTTL:   envOrDefaultDuration("REFRESH_TOKEN_TTL", 24*time.Hour),
		AdminUser:         envOrDefault("ADMIN_USER", ""),
		AdminEmail:        envOrDefault("ADMIN_EMAIL", ""),
		AdminPassword:     envOrDefault("ADMIN_PASSWORD", ""),
		AuditInterval:     envOrDefaultDuration("AUDIT_INTERVAL", 0),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "text"),
	}
}

// Validate returns an error naming every required setting that is missing.
func (c Config) Validate() error {
	return requireSettings(map[string]string{
		"DATABASE_URL": c.DatabaseURL,
		"REDIS_ADDR":   c.RedisAddr,
		"SECRET_KEY":   c.SecretKey,
	})
}

// ValidateAdmin returns an error naming every missing admin bootstrap setting.
func (c Config) ValidateAdmin() error {
	return requireSettings(map[string]string{
		"DATABASE_URL":   c.DatabaseURL,
		"ADMIN_USER":     c.AdminUser,
		"ADMIN_EMAIL":    c.AdminEmail,
		"ADMIN_PASSWORD": c.AdminPassword,
	})
}

func requireSettings(settings map[string]string) error {
	var missing []string
	for key, value := range settings {
		if value == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

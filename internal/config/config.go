package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	Timezone    string

	JWTSecret     string
	TokenTTLHours int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogMode string
	LogFile string

	SequenceMaxAttempts    int
	AggregateRetrySchedule string
	AggregateMaxAttempts   int
	LowStockSchedule       string

	AdminEmail    string
	AdminPassword string
}

func Load() Config {
	cfg := Config{
		AppEnv:                 getEnv("APP_ENV", "production"),
		Port:                   getEnv("PORT", "3000"),
		DatabaseURL:            databaseURL(),
		Timezone:               getEnv("TIMEZONE", "Local"),
		JWTSecret:              strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTLHours:          getInt("TOKEN_TTL_HOURS", 24),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0),
		LogMode:                getEnv("LOG_MODE", "production"),
		LogFile:                os.Getenv("LOG_FILE"),
		SequenceMaxAttempts:    getInt("SEQUENCE_MAX_ATTEMPTS", 5),
		AggregateRetrySchedule: getEnv("AGGREGATE_RETRY_SCHEDULE", "@every 1m"),
		AggregateMaxAttempts:   getInt("AGGREGATE_MAX_ATTEMPTS", 10),
		LowStockSchedule:       getEnv("LOW_STOCK_SCHEDULE", "@every 30m"),
		AdminEmail:             getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:          strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
	}
	if cfg.IsDevelopment() && cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-secret"
	}
	return cfg
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set outside development")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL or DB_HOST/DB_NAME must be set")
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Location resolves TIMEZONE; transaction numbers use this calendar day.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_HOST") == "" || os.Getenv("DB_NAME") == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		getEnv("DB_PORT", "5432"),
	)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

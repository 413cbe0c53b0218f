package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	DBSource      string
	Port          string
	Env           string
	LogLevel      string
	StoreDriver   string
	RunMigrations bool
	AuthDigest    string

	TelegramToken  string
	TelegramAPIURL string

	AMQPURL      string
	AMQPExchange string

	RedisAddr         string
	AuthMaxFailures   int64
	AuthFailureWindow time.Duration
}

// Load reads the environment, after loading .env when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBSource:       os.Getenv("DB_SOURCE"),
		Port:           getenv("SERVER_PORT", "8080"),
		Env:            getenv("ENVIRONMENT", "development"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", DriverPostgres)),
		AuthDigest:     strings.ToLower(getenv("AUTH_DIGEST", "md5")),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL: getenv("TELEGRAM_API_URL", "https://api.telegram.org"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		AMQPExchange:   getenv("AMQP_EXCHANGE", "ledger.events"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.RunMigrations, err = strconv.ParseBool(getenv("RUN_MIGRATIONS", "true")); err != nil {
		return nil, fmt.Errorf("RUN_MIGRATIONS: %w", err)
	}
	if cfg.AuthMaxFailures, err = strconv.ParseInt(getenv("AUTH_MAX_FAILURES", "10"), 10, 64); err != nil {
		return nil, fmt.Errorf("AUTH_MAX_FAILURES: %w", err)
	}
	if cfg.AuthFailureWindow, err = time.ParseDuration(getenv("AUTH_FAILURE_WINDOW", "15m")); err != nil {
		return nil, fmt.Errorf("AUTH_FAILURE_WINDOW: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StoreDriver)
	}

	switch c.AuthDigest {
	case "md5", "sha256":
	default:
		return fmt.Errorf("AUTH_DIGEST must be md5 or sha256, got %q", c.AuthDigest)
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("SERVER_PORT must be numeric, got %q", c.Port)
	}
	if c.AuthMaxFailures < 1 {
		return fmt.Errorf("AUTH_MAX_FAILURES must be positive, got %d", c.AuthMaxFailures)
	}
	if c.AuthFailureWindow <= 0 {
		return fmt.Errorf("AUTH_FAILURE_WINDOW must be positive, got %s", c.AuthFailureWindow)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

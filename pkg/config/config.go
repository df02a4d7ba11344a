package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Only this package reads environment variables.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External services
	Market MarketConfig
	News   NewsConfig
	Oracle OracleConfig

	// Notification
	Telegram TelegramConfig

	// Pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketConfig holds market data source configuration.
type MarketConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewsConfig holds news source configuration.
type NewsConfig struct {
	BaseURL string
	Source  string
	Timeout time.Duration
}

// OracleConfig holds Sentiment Oracle (OpenAI-compatible API) configuration.
type OracleConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// RatePerSec bounds oracle call rate independently of the
	// instrument parallelism bound.
	RatePerSec float64
	RateBurst  int
}

// TelegramConfig holds Telegram notifier configuration.
type TelegramConfig struct {
	Token   string
	ChatID  int64
	Enabled bool
}

// PipelineConfig holds the recurring trigger options.
type PipelineConfig struct {
	ScheduleExpr         string        // cron expression for recurring runs
	MaxParallel          int           // per-instrument worker bound
	RetryAttempts        int           // bounded retries for transient fetch failures
	RateLimitBackoff     time.Duration // initial backoff before the first retry
	PriceLookbackDays    int           // bars of history fetched per run
	NewsLookbackHours    int           // news window fed to the aggregator
	SentimentFloor       float64       // confidence floor for the weighted mean
	Symbols              []string      // static instrument universe (EXCHANGE:SYMBOL); empty = resolve from store
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8085"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Market: MarketConfig{
			BaseURL: getEnv("MARKET_BASE_URL", "https://quotes.sina.com.cn"),
			Timeout: getEnvAsDuration("MARKET_TIMEOUT", "30s"),
		},

		News: NewsConfig{
			BaseURL: getEnv("NEWS_BASE_URL", "https://finance.sina.com.cn"),
			Source:  getEnv("NEWS_SOURCE", "sina"),
			Timeout: getEnvAsDuration("NEWS_TIMEOUT", "30s"),
		},

		Oracle: OracleConfig{
			APIKey:     getEnv("ORACLE_API_KEY", ""),
			BaseURL:    getEnv("ORACLE_BASE_URL", "https://api.deepseek.com"),
			Model:      getEnv("ORACLE_MODEL", "deepseek-chat"),
			Timeout:    getEnvAsDuration("ORACLE_TIMEOUT", "30s"),
			RatePerSec: getEnvAsFloat("ORACLE_RATE_PER_SEC", 2),
			RateBurst:  getEnvAsInt("ORACLE_RATE_BURST", 4),
		},

		Telegram: TelegramConfig{
			Token:   getEnv("TELEGRAM_TOKEN", ""),
			ChatID:  int64(getEnvAsInt("TELEGRAM_CHAT_ID", 0)),
			Enabled: getEnvAsBool("TELEGRAM_ENABLED", false),
		},

		Pipeline: PipelineConfig{
			ScheduleExpr:      getEnv("PIPELINE_SCHEDULE", "0 30 15 * * MON-FRI"),
			MaxParallel:       getEnvAsInt("PIPELINE_MAX_PARALLEL", 8),
			RetryAttempts:     getEnvAsInt("PIPELINE_RETRY_ATTEMPTS", 3),
			RateLimitBackoff:  getEnvAsDuration("PIPELINE_BACKOFF_MS", "500ms"),
			PriceLookbackDays: getEnvAsInt("PIPELINE_PRICE_LOOKBACK_DAYS", 120),
			NewsLookbackHours: getEnvAsInt("PIPELINE_NEWS_LOOKBACK_HOURS", 72),
			SentimentFloor:    getEnvAsFloat("PIPELINE_SENTIMENT_FLOOR", 0.3),
			Symbols:           getEnvAsList("PIPELINE_SYMBOLS", nil),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks required configuration values.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.MaxParallel < 1 {
		return fmt.Errorf("PIPELINE_MAX_PARALLEL must be at least 1")
	}

	if c.Pipeline.RetryAttempts < 0 {
		return fmt.Errorf("PIPELINE_RETRY_ATTEMPTS must not be negative")
	}

	if c.Pipeline.SentimentFloor < 0 || c.Pipeline.SentimentFloor > 1 {
		return fmt.Errorf("PIPELINE_SENTIMENT_FLOOR must be in [0, 1]")
	}

	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required when TELEGRAM_ENABLED=true")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Scoring pipeline
	Scoring ScoringConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	Enabled   bool
	KeyPrefix string // 모든 KV 키의 네임스페이스
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ScoringConfig holds batch recompute and smoothing parameters
type ScoringConfig struct {
	JobName    string
	LockName   string
	LockTTL    time.Duration
	PageSize   int
	Workers    int
	TimeBudget time.Duration // 0 = 무제한

	// 초당 처리 회사 수 (0 = 무제한)
	RatePerSecond float64

	TrustCapPercent   float64
	FundamentalsAlpha float64

	HistoryWindow int
	RetentionDays int

	FlagsFile string

	RecomputeSchedule    string
	HousekeepingSchedule string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Enabled:   getEnvAsBool("REDIS_ENABLED", true),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "trustrank"),
		},

		Scoring: ScoringConfig{
			JobName:    getEnv("SCORE_JOB_NAME", "score_recompute"),
			LockName:   getEnv("SCORE_LOCK_NAME", "score:recompute"),
			LockTTL:    getEnvAsDuration("SCORE_LOCK_TTL", "10m"),
			PageSize:   getEnvAsInt("SCORE_PAGE_SIZE", 200),
			Workers:    getEnvAsInt("SCORE_WORKERS", 8),
			TimeBudget: getEnvAsDuration("SCORE_TIME_BUDGET", "50s"),

			RatePerSecond: getEnvAsFloat("SCORE_RATE_PER_SECOND", 0),

			TrustCapPercent:   getEnvAsFloat("SCORE_TRUST_CAP_PERCENT", 7),
			FundamentalsAlpha: getEnvAsFloat("SCORE_FUNDAMENTALS_ALPHA", 0.3),

			HistoryWindow: getEnvAsInt("SCORE_HISTORY_WINDOW", 14),
			RetentionDays: getEnvAsInt("SCORE_RETENTION_DAYS", 30),

			FlagsFile: getEnv("FLAGS_FILE", ""),

			RecomputeSchedule:    getEnv("SCORE_RECOMPUTE_SCHEDULE", "0 */15 * * * *"),
			HousekeepingSchedule: getEnv("SCORE_HOUSEKEEPING_SCHEDULE", "0 0 3 * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	return c.Scoring.validate()
}

func (s ScoringConfig) validate() error {
	if s.PageSize <= 0 {
		return fmt.Errorf("SCORE_PAGE_SIZE must be positive, got %d", s.PageSize)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("SCORE_WORKERS must be positive, got %d", s.Workers)
	}
	if s.LockTTL <= 0 {
		return fmt.Errorf("SCORE_LOCK_TTL must be positive")
	}
	if s.TrustCapPercent <= 0 || s.TrustCapPercent > 100 {
		return fmt.Errorf("SCORE_TRUST_CAP_PERCENT must be in (0,100], got %v", s.TrustCapPercent)
	}
	if s.FundamentalsAlpha <= 0 || s.FundamentalsAlpha > 1 {
		return fmt.Errorf("SCORE_FUNDAMENTALS_ALPHA must be in (0,1], got %v", s.FundamentalsAlpha)
	}
	if s.HistoryWindow < 7 {
		return fmt.Errorf("SCORE_HISTORY_WINDOW must be at least 7, got %d", s.HistoryWindow)
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

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

// Feature sources
const (
	FeatureSourcePostgres  = "postgres"
	FeatureSourceHTTP      = "http"
	FeatureSourceSynthetic = "synthetic"
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

	// Feature provider
	Features FeatureConfig

	// Kafka (job events)
	Kafka KafkaConfig

	// Comparison engine
	Comparison ComparisonConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
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

// FeatureConfig selects where feature rows come from
type FeatureConfig struct {
	Source   string        // postgres, http, synthetic
	BaseURL  string        // http source
	Timeout  time.Duration // http source
	RPS      float64       // http source 초당 요청 수
	Burst    int
	CacheTTL time.Duration // 0 이면 캐시 비활성
}

// KafkaConfig holds job event publisher configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// ComparisonConfig holds comparison engine runtime settings
type ComparisonConfig struct {
	ProfilePath  string // YAML profile, 비어있으면 기본 프로필
	JobWorkers   int
	PersistRuns  bool
	HistoryDays  int // 기본 조회 기간 (일)
	APIRateLimit int // 분당 요청 수 (0 = 무제한)
}

// SchedulerConfig holds batch comparison schedule settings
type SchedulerConfig struct {
	BatchSchedule string
	Watchlist     []string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Features: FeatureConfig{
			Source:   getEnv("FEATURE_SOURCE", FeatureSourcePostgres),
			BaseURL:  getEnv("FEATURE_SERVICE_URL", ""),
			Timeout:  getEnvAsDuration("FEATURE_SERVICE_TIMEOUT", "30s"),
			RPS:      getEnvAsFloat("FEATURE_SERVICE_RPS", 5),
			Burst:    getEnvAsInt("FEATURE_SERVICE_BURST", 5),
			CacheTTL: getEnvAsDuration("FEATURE_CACHE_TTL", "1h"),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_JOB_TOPIC", "modelcmp.jobs"),
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
		},

		Comparison: ComparisonConfig{
			ProfilePath:  getEnv("COMPARE_PROFILE", ""),
			JobWorkers:   getEnvAsInt("COMPARE_JOB_WORKERS", 2),
			PersistRuns:  getEnvAsBool("COMPARE_PERSIST_RUNS", true),
			HistoryDays:  getEnvAsInt("COMPARE_HISTORY_DAYS", 1095),
			APIRateLimit: getEnvAsInt("COMPARE_API_RATE_LIMIT", 30),
		},

		Scheduler: SchedulerConfig{
			BatchSchedule: getEnv("BATCH_SCHEDULE", "0 0 19 * * 1-5"),
			Watchlist:     getEnvAsList("BATCH_WATCHLIST", nil),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// NeedsDatabase reports whether any enabled component reads or writes Postgres
func (c *Config) NeedsDatabase() bool {
	return c.Features.Source == FeatureSourcePostgres || c.Comparison.PersistRuns
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.NeedsDatabase() && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required (FEATURE_SOURCE=%s, COMPARE_PERSIST_RUNS=%t)",
			c.Features.Source, c.Comparison.PersistRuns)
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Features.Source {
	case FeatureSourcePostgres, FeatureSourceSynthetic:
	case FeatureSourceHTTP:
		if c.Features.BaseURL == "" {
			return fmt.Errorf("FEATURE_SERVICE_URL is required when FEATURE_SOURCE=http")
		}
	default:
		return fmt.Errorf("FEATURE_SOURCE must be one of: postgres, http, synthetic")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	if c.Comparison.JobWorkers < 1 {
		return fmt.Errorf("COMPARE_JOB_WORKERS must be >= 1")
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value ("a, b,c")
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

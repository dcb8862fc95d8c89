package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Log       LogConfig
	BulkData  BulkDataConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Metrics   MetricsConfig
	Scheduler SchedulerConfig
	Input     InputConfig
	Search    SearchConfig
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

type BulkDataConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	Timeout           time.Duration
	PrefetchWorkers   int
}

type StorageConfig struct {
	Type      string
	LocalPath string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
}

type SchedulerConfig struct {
	Spec       string
	OutputPath string
	FromYear   int
	ToYear     int
	BatchSize  int // weeks converted per run
}

type InputConfig struct {
	Encoding string // ascii or latin1
}

type SearchConfig struct {
	IndexPath string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		BulkData: BulkDataConfig{
			BaseURL:           getEnv("BULKDATA_BASE_URL", "https://bulkdata.uspto.gov/data/patent/grant/redbook/fulltext/"),
			RequestsPerSecond: getEnvAsFloat("BULKDATA_REQUESTS_PER_SECOND", 1),
			Timeout:           getEnvAsDuration("BULKDATA_TIMEOUT", 10*time.Minute),
			PrefetchWorkers:   getEnvAsInt("BULKDATA_PREFETCH_WORKERS", 2),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./archives"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "patentgrant"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Port:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Scheduler: SchedulerConfig{
			Spec:       getEnv("SCHEDULER_SPEC", "@every 6h"),
			OutputPath: getEnv("SCHEDULER_OUTPUT", "grants.csv"),
			FromYear:   getEnvAsInt("SCHEDULER_FROM_YEAR", 1976),
			ToYear:     getEnvAsInt("SCHEDULER_TO_YEAR", 2001),
			BatchSize:  getEnvAsInt("SCHEDULER_BATCH_SIZE", 4),
		},
		Input: InputConfig{
			Encoding: strings.ToLower(getEnv("INPUT_ENCODING", "ascii")),
		},
		Search: SearchConfig{
			IndexPath: getEnv("SEARCH_INDEX_PATH", "grants.bleve"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Input.Encoding {
	case "ascii", "latin1":
	default:
		return fmt.Errorf("INPUT_ENCODING must be ascii or latin1, got %q", c.Input.Encoding)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	if c.BulkData.PrefetchWorkers < 1 {
		return errors.New("BULKDATA_PREFETCH_WORKERS must be at least 1")
	}
	if c.BulkData.RequestsPerSecond <= 0 {
		return errors.New("BULKDATA_REQUESTS_PER_SECOND must be positive")
	}
	if c.Scheduler.FromYear > c.Scheduler.ToYear {
		return fmt.Errorf("SCHEDULER_FROM_YEAR %d is after SCHEDULER_TO_YEAR %d", c.Scheduler.FromYear, c.Scheduler.ToYear)
	}
	if c.Scheduler.BatchSize < 1 {
		return errors.New("SCHEDULER_BATCH_SIZE must be at least 1")
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

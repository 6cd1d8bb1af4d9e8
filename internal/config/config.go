package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Event modes
const (
	// EventModeInline runs the tracker inside the HTTP server
	EventModeInline = "inline"
	// EventModeQueue publishes tab events to RabbitMQ for the worker
	EventModeQueue = "queue"
)

// DefaultSQLiteURL is used when the sqlite backend has no DATABASE_URL
const DefaultSQLiteURL = "file:sitetime.db"

// Config holds application configuration
type Config struct {
	ServerPort       string
	StorageBackend   string
	DatabaseURL      string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	EventMode        string
	FlushInterval    time.Duration
	FlushAtMidnight  bool
	MinInterval      time.Duration
	BlockPageURL     string
	CommandTTL       time.Duration
	OutboxCapacity   int
	AllowedOrigins   []string
	RateLimit        string
	StorageTimeout   time.Duration
	EnableHSTS       bool
	WorkerDebugMode  bool
	ServerDebugMode  bool
	LogFormat        string
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		StorageBackend:   strings.ToLower(getEnv("STORAGE_BACKEND", BackendSQLite)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		EventMode:        strings.ToLower(getEnv("EVENT_MODE", EventModeInline)),
		FlushInterval:    getEnvDuration("FLUSH_INTERVAL", time.Minute),
		FlushAtMidnight:  getEnvBool("FLUSH_AT_MIDNIGHT", true),
		MinInterval:      getEnvDuration("MIN_INTERVAL", time.Second),
		BlockPageURL:     getEnv("BLOCK_PAGE_URL", "blocked.html"),
		CommandTTL:       getEnvDuration("COMMAND_TTL", 5*time.Minute),
		OutboxCapacity:   getEnvInt("OUTBOX_CAPACITY", 100),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", []string{"chrome-extension://*"}),
		RateLimit:        getEnv("RATE_LIMIT", "50-S"),
		StorageTimeout:   getEnvDuration("STORAGE_TIMEOUT", 5*time.Second),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		LogFormat:        strings.ToLower(getEnv("LOG_FORMAT", "json")),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.StorageBackend == BackendSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultSQLiteURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the combination of settings can run
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres backend"))
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be one of memory, sqlite, postgres, redis (got %q)", c.StorageBackend))
	}

	switch c.EventMode {
	case EventModeInline:
	case EventModeQueue:
		if c.RabbitMQURL == "" {
			errs = append(errs, fmt.Errorf("RABBITMQ_URL is required when EVENT_MODE=queue"))
		}
		if c.StorageBackend == BackendMemory {
			errs = append(errs, fmt.Errorf("EVENT_MODE=queue needs a storage backend shared by server and worker (memory is process-local)"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVENT_MODE must be inline or queue (got %q)", c.EventMode))
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.LogFormat))
	}
	if c.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("FLUSH_INTERVAL must be positive"))
	}
	if c.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("MIN_INTERVAL must not be negative"))
	}
	if c.StorageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STORAGE_TIMEOUT must be positive"))
	}
	if c.RabbitMQPrefetch < 1 {
		errs = append(errs, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1"))
	}
	if c.OutboxCapacity < 1 {
		errs = append(errs, fmt.Errorf("OUTBOX_CAPACITY must be at least 1"))
	}

	return errors.Join(errs...)
}

// IsQueueMode reports whether tab events travel over RabbitMQ
func (c *Config) IsQueueMode() bool {
	return c.EventMode == EventModeQueue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s", "1m") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Rate limit backends
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Comment store configuration
	Store StoreConfig

	// Database configuration (postgres driver)
	Database DatabaseConfig

	// SQLite configuration (sqlite driver)
	SQLite SQLiteConfig

	// Admission control configuration
	RateLimit RateLimitConfig

	// Redis configuration (redis rate limit backend)
	Redis RedisConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedProxies  []string
	// APIKey, when set, must be sent in the X-Api-Key header
	APIKey string
}

// StoreConfig selects and tunes the comment store
type StoreConfig struct {
	Driver           string
	OperationTimeout time.Duration
	RecentMax        int
	RecentShards     int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// SQLiteConfig holds the embedded database settings
type SQLiteConfig struct {
	Path         string
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// RateLimitConfig holds fixed-window admission settings
type RateLimitConfig struct {
	Backend      string
	Requests     int
	Window       time.Duration
	Timeout      time.Duration
	IdleTTL      time.Duration
	CleanupEvery time.Duration
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			TrustedProxies:  getListEnv("TRUSTED_PROXIES"),
			APIKey:          getEnv("API_KEY", ""),
		},
		Store: StoreConfig{
			Driver:           getEnv("STORE_DRIVER", StoreDriverMemory),
			OperationTimeout: getDurationEnv("STORE_OPERATION_TIMEOUT", 3*time.Second),
			RecentMax:        getIntEnv("STORE_RECENT_MAX", 100),
			RecentShards:     getIntEnv("STORE_RECENT_SHARDS", 16),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Name:         getEnv("DB_NAME", "doi_comments"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
		},
		SQLite: SQLiteConfig{
			Path:         getEnv("SQLITE_PATH", "./data/comments.db"),
			BusyTimeout:  getDurationEnv("SQLITE_BUSY_TIMEOUT", 5*time.Second),
			MaxOpenConns: getIntEnv("SQLITE_MAX_OPEN_CONNS", 4),
		},
		RateLimit: RateLimitConfig{
			Backend:      getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory),
			Requests:     getIntEnv("RATE_LIMIT_REQUESTS", 10),
			Window:       getDurationEnv("RATE_LIMIT_WINDOW", 5*time.Minute),
			Timeout:      getDurationEnv("RATE_LIMIT_TIMEOUT", 500*time.Millisecond),
			IdleTTL:      getDurationEnv("RATE_LIMIT_IDLE_TTL", 15*time.Minute),
			CleanupEvery: getDurationEnv("RATE_LIMIT_CLEANUP_EVERY", 2*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "doi-comments:ratelimit"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case StoreDriverSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: memory, postgres, sqlite (got %q)", c.Store.Driver)
	}

	if c.Store.OperationTimeout <= 0 {
		return fmt.Errorf("STORE_OPERATION_TIMEOUT must be positive")
	}
	if c.Store.RecentMax <= 0 {
		return fmt.Errorf("STORE_RECENT_MAX must be positive")
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of: memory, redis (got %q)", c.RateLimit.Backend)
	}

	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns the SQLite connection string with WAL enabled
func (c *SQLiteConfig) GetDSN() string {
	return fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		c.Path, c.BusyTimeout.Milliseconds(),
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Cache backends
const (
	CacheBackendFile   = "file"
	CacheBackendRedis  = "redis"
	CacheBackendMongo  = "mongo"
	CacheBackendMemory = "memory"
)

// MaxCacheTTLDays keeps the cache TTL well inside time.Duration range
const MaxCacheTTLDays = 36500

// ErrUnknownBackend is returned when CACHE_BACKEND names an unsupported store
var ErrUnknownBackend = errors.New("unknown cache backend")

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `json:"server"`
	Simples  SimplesConfig  `json:"simples"`
	Cache    CacheConfig    `json:"cache"`
	Redis    RedisConfig    `json:"redis"`
	Mongo    MongoConfig    `json:"mongo"`
	Log      LogConfig      `json:"log"`
	Security SecurityConfig `json:"security"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
	BatchMaxSize int    `json:"batch_max_size"`
}

// SimplesConfig holds the registry lookup and batch pacing configuration
type SimplesConfig struct {
	BaseURL        string        `json:"base_url"`
	UserAgent      string        `json:"user_agent"`
	RequestTimeout time.Duration `json:"request_timeout"`
	RetryBackoff   time.Duration `json:"retry_backoff"`
	RateLimitDelay time.Duration `json:"rate_limit_delay"`
	CacheTTLDays   int           `json:"cache_ttl_days"`
}

// CacheTTL returns the freshness window of a cached result
func (c SimplesConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// BatchDuration is the longest a batch of n lookups can take: every lookup
// timing out twice around its backoff, plus the delays between lookups.
func (c SimplesConfig) BatchDuration(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	perItem := 2*c.RequestTimeout + c.RetryBackoff
	return time.Duration(n)*perItem + time.Duration(n-1)*c.RateLimitDelay
}

// CacheConfig selects and configures the persisted cache store
type CacheConfig struct {
	Backend string `json:"backend"`
	File    string `json:"file"`
	Key     string `json:"key"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI            string        `json:"uri"`
	Database       string        `json:"database"`
	Collection     string        `json:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// HTTPWriteTimeout is WRITE_TIMEOUT, raised when needed so that a batch of
// BATCH_MAX_SIZE lookups can still be answered
func (c *Config) HTTPWriteTimeout() time.Duration {
	configured := time.Duration(c.Server.WriteTimeout) * time.Second
	if c.Server.BatchMaxSize <= 0 {
		return configured
	}
	if worst := c.Simples.BatchDuration(c.Server.BatchMaxSize) + time.Minute; worst > configured {
		return worst
	}
	return configured
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 900),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
			BatchMaxSize: getEnvAsInt("BATCH_MAX_SIZE", 50),
		},
		Simples: SimplesConfig{
			BaseURL:        getEnv("SIMPLES_API_BASE_URL", "https://open.cnpja.com/office/"),
			UserAgent:      getEnv("SIMPLES_USER_AGENT", "simples-nacional/1.0"),
			RequestTimeout: getEnvAsDuration("SIMPLES_REQUEST_TIMEOUT", 15*time.Second),
			RetryBackoff:   getEnvAsDuration("SIMPLES_RETRY_BACKOFF", 30*time.Second),
			RateLimitDelay: getEnvAsDuration("SIMPLES_RATE_LIMIT_DELAY", 12*time.Second),
			CacheTTLDays:   getEnvAsInt("SIMPLES_CACHE_TTL_DAYS", 30),
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", CacheBackendFile),
			File:    getEnv("CACHE_FILE", "cache_simples.json"),
			Key:     getEnv("CACHE_KEY", "simples:cache"),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGO_DB", "simples"),
			Collection:     getEnv("MONGO_COLLECTION", "cache"),
			ConnectTimeout: time.Duration(getEnvAsInt("MONGO_CONNECT_TIMEOUT", 10)) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 30),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 5),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values that would make a batch run misbehave
func (c *Config) Validate() error {
	if c.Simples.BaseURL == "" {
		return fmt.Errorf("SIMPLES_API_BASE_URL is required")
	}
	if c.Simples.RequestTimeout <= 0 {
		return fmt.Errorf("SIMPLES_REQUEST_TIMEOUT must be positive, got %s", c.Simples.RequestTimeout)
	}
	if c.Simples.RetryBackoff < 0 {
		return fmt.Errorf("SIMPLES_RETRY_BACKOFF must not be negative, got %s", c.Simples.RetryBackoff)
	}
	if c.Simples.RateLimitDelay < 0 {
		return fmt.Errorf("SIMPLES_RATE_LIMIT_DELAY must not be negative, got %s", c.Simples.RateLimitDelay)
	}
	if c.Simples.CacheTTLDays <= 0 || c.Simples.CacheTTLDays > MaxCacheTTLDays {
		return fmt.Errorf("SIMPLES_CACHE_TTL_DAYS must be between 1 and %d, got %d", MaxCacheTTLDays, c.Simples.CacheTTLDays)
	}

	switch c.Cache.Backend {
	case CacheBackendFile:
		if c.Cache.File == "" {
			return fmt.Errorf("CACHE_FILE is required for the %s backend", CacheBackendFile)
		}
	case CacheBackendRedis, CacheBackendMongo, CacheBackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Cache.Backend)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s", "2m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

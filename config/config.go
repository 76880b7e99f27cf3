package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// HTTP API
	HTTP HTTPConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Gateway authentication
	Auth AuthConfig

	// Finance engine tunables
	Finance FinanceConfig

	// Event bus
	EventBus EventBusConfig

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone in which business days are closed (default: Asia/Karachi)
	Timezone string
	Location *time.Location

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// HTTPConfig holds API listener settings.
type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
}

// DatabaseConfig holds PostgreSQL settings.
// An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrateOnStart  bool
}

// RedisConfig holds Redis settings for the distributed lock and the event bus.
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// LockTTL bounds how long a crashed instance can hold a partner lock.
	LockTTL time.Duration
}

// AuthConfig holds the credentials the upstream gateway presents.
type AuthConfig struct {
	// GatewayKeyHashes are bcrypt hashes of accepted X-Gateway-Key values.
	GatewayKeyHashes []string
}

// FinanceConfig holds defaults of the finance engine.
type FinanceConfig struct {
	// DefaultTeacherShare seeds the salary configuration on first boot (percent).
	DefaultTeacherShare decimal.Decimal

	// SettlementRetryAttempts bounds retries of a unit of work that lost a race.
	SettlementRetryAttempts int
}

// EventBusConfig holds event delivery settings.
type EventBusConfig struct {
	Workers int

	// Channel is the Redis pub/sub channel used when Redis is enabled.
	Channel string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, merging a local .env file if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		App:           loadAppConfig(),
		HTTP:          loadHTTPConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Finance:       loadFinanceConfig(),
		EventBus:      loadEventBusConfig(),
		Observability: loadObservabilityConfig(),
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))
	timezone := getEnv("ACADEMY_TIMEZONE", "Asia/Karachi")

	// Validate reports an unknown zone.
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = nil
	}

	return AppConfig{
		Name:            getEnv("APP_NAME", "academy-finance"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		Timezone:        timezone,
		Location:        loc,
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:         getEnv("HTTP_HOST", "0.0.0.0"),
		Port:         getEnvInt("HTTP_PORT", 8080),
		ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxBodyBytes: int64(getEnvInt("HTTP_MAX_BODY_BYTES", 1<<20)),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	url := getEnv("DATABASE_URL", "")
	if url == "" {
		host := getEnv("POSTGRES_HOST", "")
		port := getEnv("POSTGRES_PORT", "5432")
		user := getEnv("POSTGRES_USER", "")
		pass := getEnv("POSTGRES_PASSWORD", "")
		name := getEnv("POSTGRES_DB", "academy_finance")
		sslmode := getEnv("POSTGRES_SSLMODE", "disable")

		if host != "" && user != "" {
			url = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user, pass, host, port, name, sslmode)
		}
	}

	return DatabaseConfig{
		URL:             url,
		MaxConns:        getEnvInt("DB_MAX_CONNS", 10),
		MinConns:        getEnvInt("DB_MIN_CONNS", 2),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		MigrateOnStart:  getEnvBool("DB_MIGRATE_ON_START", true),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      getEnvBool("REDIS_ENABLED", false),
		Host:         getEnv("REDIS_HOST", "localhost"),
		Port:         getEnvInt("REDIS_PORT", 6379),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           getEnvInt("REDIS_DB", 0),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		LockTTL:      getEnvDuration("REDIS_LOCK_TTL", 15*time.Second),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		GatewayKeyHashes: getEnvStringSlice("GATEWAY_KEY_HASHES", nil),
	}
}

func loadFinanceConfig() FinanceConfig {
	return FinanceConfig{
		DefaultTeacherShare:     getEnvDecimal("DEFAULT_TEACHER_SHARE", decimal.NewFromInt(70)),
		SettlementRetryAttempts: getEnvInt("SETTLEMENT_RETRY_ATTEMPTS", 3),
	}
}

func loadEventBusConfig() EventBusConfig {
	return EventBusConfig{
		Workers: getEnvInt("EVENT_BUS_WORKERS", 10),
		Channel: getEnv("EVENT_BUS_CHANNEL", "academy-finance:events"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Sprintf("APP_ENV %q is not one of development, staging, production", c.App.Environment))
	}

	if c.App.Location == nil {
		errs = append(errs, fmt.Sprintf("ACADEMY_TIMEZONE %q is not a known IANA zone", c.App.Timezone))
	}

	// Production must persist data and authenticate the gateway
	if c.App.Environment == EnvProduction {
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required in production")
		}
		if len(c.Auth.GatewayKeyHashes) == 0 {
			errs = append(errs, "GATEWAY_KEY_HASHES is required in production")
		}
	}

	// Validate ranges
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}

	if c.Redis.Enabled && (c.Redis.DB < 0 || c.Redis.DB > 15) {
		errs = append(errs, "REDIS_DB must be 0-15")
	}

	share := c.Finance.DefaultTeacherShare
	if share.IsNegative() || share.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, "DEFAULT_TEACHER_SHARE must be 0-100")
	}

	if c.Finance.SettlementRetryAttempts < 1 {
		errs = append(errs, "SETTLEMENT_RETRY_ATTEMPTS must be at least 1")
	}

	if c.EventBus.Workers < 1 {
		errs = append(errs, "EVENT_BUS_WORKERS must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// UsesPostgres reports whether a database is configured.
func (c *Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := decimal.NewFromString(strings.TrimSpace(val))
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		result = append(result, p)
	}
	return result
}

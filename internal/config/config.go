package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Storage  StorageConfig
	Cron     CronConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Version        string
	AllowedOrigins []string
}

// PayrollConfig holds the values the calculation pipeline needs explicitly
// instead of as compiled-in constants.
type PayrollConfig struct {
	MinimumWage    decimal.Decimal
	Workers        int
	SpikeThreshold decimal.Decimal
	LockWait       time.Duration
	Currency       string
	CompanyName    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	RunEventsTopic string
}

type StorageConfig struct {
	Type     string
	BasePath string
	BaseURL  string
}

type CronConfig struct {
	AnomalyScanInterval time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	var err error

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbMaxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "payroll_engine"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(dbMaxConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Payroll configuration
	minimumWage, err := decimal.NewFromString(getEnv("PAYROLL_MINIMUM_WAGE", "6000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_MINIMUM_WAGE: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("PAYROLL_WORKERS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_WORKERS: %w", err)
	}
	spike, err := decimal.NewFromString(getEnv("PAYROLL_SPIKE_THRESHOLD", "0.5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_SPIKE_THRESHOLD: %w", err)
	}
	lockWait, err := time.ParseDuration(getEnv("PAYROLL_LOCK_WAIT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYROLL_LOCK_WAIT: %w", err)
	}

	config.Payroll = PayrollConfig{
		MinimumWage:    minimumWage,
		Workers:        workers,
		SpikeThreshold: spike,
		LockWait:       lockWait,
		Currency:       getEnv("PAYROLL_CURRENCY", "EGP"),
		CompanyName:    getEnv("PAYROLL_COMPANY_NAME", "CMLabs"),
	}

	// Redis configuration (optional, enables the distributed run lock)
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	lockTTL, err := time.ParseDuration(getEnv("REDIS_LOCK_TTL", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_LOCK_TTL: %w", err)
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
		LockTTL:  lockTTL,
	}

	// Kafka configuration (optional, enables run lifecycle events)
	config.Kafka = KafkaConfig{
		Brokers:        getEnvSlice("KAFKA_BROKERS", ""),
		RunEventsTopic: getEnv("KAFKA_RUN_EVENTS_TOPIC", "payroll.run.events"),
	}

	config.Storage = StorageConfig{
		Type:     getEnv("STORAGE_TYPE", "local"),
		BasePath: getEnv("STORAGE_BASE_PATH", "./storage"),
		BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8080/files"),
	}

	scanInterval, err := time.ParseDuration(getEnv("CRON_ANOMALY_SCAN_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_ANOMALY_SCAN_INTERVAL: %w", err)
	}
	config.Cron = CronConfig{AnomalyScanInterval: scanInterval}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.MinimumWage.IsNegative() {
		return fmt.Errorf("PAYROLL_MINIMUM_WAGE must be non-negative")
	}
	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be at least 1")
	}
	if !c.Payroll.SpikeThreshold.IsPositive() {
		return fmt.Errorf("PAYROLL_SPIKE_THRESHOLD must be positive")
	}
	if c.Redis.LockTTL <= 0 {
		return fmt.Errorf("REDIS_LOCK_TTL must be positive")
	}
	if c.Cron.AnomalyScanInterval <= 0 {
		return fmt.Errorf("CRON_ANOMALY_SCAN_INTERVAL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// LogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(key, fallback string) []string {
	value := getEnv(key, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

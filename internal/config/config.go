// Package config загружает конфигурацию сервисов taskqueue из .env и
// переменных окружения.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/robbitt07/taskqueue/internal/mq"
	"github.com/robbitt07/taskqueue/internal/telemetry"
)

// Бэкенды хранилища дедупликации.
const (
	DedupMemory   = "memory"
	DedupRedis    = "redis"
	DedupPostgres = "postgres"
	DedupNone     = "none"
)

// ErrInvalidConfig — конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid config")

// RabbitMQConfig — параметры брокера и management API.
type RabbitMQConfig struct {
	Host      string
	Port      int
	AdminPort int
	VHost     string
	User      string
	Password  string
	Queues    []string
}

// LogConfig — настройки stdout-логгера.
type LogConfig struct {
	Level  string
	Format string
}

// FluentBitConfig — настройки отправки логов в Fluent Bit.
type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

// DedupConfig — хранилище обработанных message id.
type DedupConfig struct {
	Backend string
	TTL     time.Duration
}

// Config — конфигурация приложения.
type Config struct {
	AppName string

	RabbitMQ  RabbitMQConfig
	Log       LogConfig
	FluentBit FluentBitConfig
	Dedup     DedupConfig

	HTTPPort     string
	DBURL        string
	RedisAddr    string
	WorkerQueue  string
	ScheduleFile string
}

// Load читает .env (если есть) и переменные окружения.
//
// Без аргументов ищется .env в текущей директории, и его отсутствие не
// ошибка. Явно переданный путь обязан существовать.
func Load(appName string, envPath ...string) (*Config, error) {
	if len(envPath) > 0 {
		if err := godotenv.Load(envPath...); err != nil {
			return nil, fmt.Errorf("load env file %v: %w", envPath, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		AppName: getEnv("APP_NAME", appName),
		RabbitMQ: RabbitMQConfig{
			Host:      getEnv("RABBITMQ_HOST", "localhost"),
			Port:      getEnvAsInt("RABBITMQ_PORT", 5672),
			AdminPort: getEnvAsInt("RABBITMQ_ADMIN_PORT", 15672),
			VHost:     getEnv("RABBITMQ_VHOST", "/"),
			User:      getEnv("RABBITMQ_USER", "guest"),
			Password:  getEnv("RABBITMQ_PASS", "guest"),
			Queues:    mq.ParseQueues(getEnv("RABBITMQ_QUEUES", mq.DefaultQueue)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "INFO"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		FluentBit: FluentBitConfig{
			Enabled: getEnvAsBool("FLUENTBIT_ENABLED", false),
			Host:    getEnv("FLUENTBIT_HOST", ""),
			Port:    getEnvAsInt("FLUENTBIT_PORT", 24224),
			Level:   getEnv("FLUENTBIT_LOG_LEVEL", "INFO"),
		},
		Dedup: DedupConfig{
			Backend: strings.ToLower(getEnv("DEDUP_BACKEND", DedupMemory)),
			TTL:     getEnvAsDuration("DEDUP_TTL", 24*time.Hour),
		},
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		DBURL:        getEnv("DB_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		WorkerQueue:  getEnv("WORKER_QUEUE", mq.DefaultQueue),
		ScheduleFile: getEnv("SCHEDULE_FILE", "schedules.json"),
	}

	if cfg.FluentBit.Enabled && cfg.FluentBit.Host == "" {
		slog.Warn("FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set, disabling Fluent Bit")
		cfg.FluentBit.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("%w: RABBITMQ_HOST is required", ErrInvalidConfig)
	}

	switch c.Dedup.Backend {
	case DedupMemory, DedupRedis, DedupNone:
	case DedupPostgres:
		if c.DBURL == "" {
			return fmt.Errorf("%w: DB_URL is required for DEDUP_BACKEND=postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown DEDUP_BACKEND %q", ErrInvalidConfig, c.Dedup.Backend)
	}
	return nil
}

// MQ возвращает конфигурацию подключения к брокеру.
func (c *Config) MQ() mq.Config {
	return mq.Config{
		Host:     c.RabbitMQ.Host,
		Port:     c.RabbitMQ.Port,
		VHost:    c.RabbitMQ.VHost,
		User:     c.RabbitMQ.User,
		Password: c.RabbitMQ.Password,
		Queues:   c.RabbitMQ.Queues,
	}
}

// AdminURL возвращает базовый адрес management API.
func (c *Config) AdminURL() string {
	return "http://" + net.JoinHostPort(c.RabbitMQ.Host, strconv.Itoa(c.RabbitMQ.AdminPort))
}

// Logging возвращает настройки stdout-логгера для telemetry.
func (c *Config) Logging() telemetry.LogConfig {
	return telemetry.LogConfig{Level: c.Log.Level, Format: c.Log.Format}
}

// Fluent возвращает настройки Fluent Bit для telemetry.
// Второе значение false, если отправка выключена.
func (c *Config) Fluent() (telemetry.FluentConfig, bool) {
	return telemetry.FluentConfig{
		Host:      c.FluentBit.Host,
		Port:      c.FluentBit.Port,
		TagPrefix: c.AppName,
		Level:     c.FluentBit.Level,
	}, c.FluentBit.Enabled
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt читает переменную окружения как int или возвращает значение по умолчанию.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("could not parse env as int, using default", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("could not parse env as bool, using default", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("could not parse env as duration, using default", "key", key, "value", valueStr, "default", defaultValue)
		return defaultValue
	}
	return value
}

// SetupLogger настраивает глобальный логгер по конфигурации.
// При включённом Fluent Bit записи дублируются туда; возвращаемая функция
// закрывает клиента Fluent Bit и должна вызываться при завершении.
func (c *Config) SetupLogger() (*slog.Logger, func()) {
	fluentCfg, enabled := c.Fluent()
	if !enabled {
		return telemetry.SetupLogger(c.Logging()), func() {}
	}

	fh, err := telemetry.NewFluentHandler(fluentCfg)
	if err != nil {
		logger := telemetry.SetupLogger(c.Logging())
		logger.Warn("fluent bit disabled", "error", err)
		return logger, func() {}
	}

	logger := telemetry.SetupLogger(c.Logging(), fh)
	logger.Info("fluent bit logging enabled", "host", c.FluentBit.Host, "port", c.FluentBit.Port)
	return logger, func() { _ = fh.Close() }
}

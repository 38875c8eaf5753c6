// Package config loads runtime configuration for the order service from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Telemetry TelemetryConfig
	Orders    OrdersConfig
	Storage   StorageConfig
}

// ServerConfig holds the listener addresses.
type ServerConfig struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":9090"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// TelemetryConfig holds tracing, metrics and logging settings.
type TelemetryConfig struct {
	ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"order-service"`
	Environment  string `envconfig:"OTEL_RESOURCE_ATTRIBUTES_ENV" default:"local"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// OrdersConfig tunes the order pipeline simulation.
type OrdersConfig struct {
	InitialStock       int64         `envconfig:"INITIAL_STOCK" default:"100"`
	AsyncWorkers       int           `envconfig:"ASYNC_WORKERS" default:"16"`
	PaymentSuccessRate float64       `envconfig:"PAYMENT_SUCCESS_RATE" default:"0.95"`
	PaymentDelayMin    time.Duration `envconfig:"PAYMENT_DELAY_MIN" default:"200ms"`
	PaymentDelayMax    time.Duration `envconfig:"PAYMENT_DELAY_MAX" default:"500ms"`
	InventoryDelayMin  time.Duration `envconfig:"INVENTORY_DELAY_MIN" default:"100ms"`
	InventoryDelayMax  time.Duration `envconfig:"INVENTORY_DELAY_MAX" default:"300ms"`
}

// StorageConfig points at the optional adapters. Empty values disable them.
type StorageConfig struct {
	RedisAddr   string        `envconfig:"REDIS_ADDR"`
	ResultTTL   time.Duration `envconfig:"RESULT_TTL" default:"24h"`
	JournalPath string        `envconfig:"JOURNAL_PATH"`
	AMQPURL     string        `envconfig:"AMQP_URL"`
	AMQPQueue   string        `envconfig:"AMQP_QUEUE" default:"orders.placed"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	o := c.Orders
	if o.InitialStock < 0 {
		return fmt.Errorf("config: INITIAL_STOCK must not be negative, got %d", o.InitialStock)
	}
	if o.AsyncWorkers <= 0 {
		return fmt.Errorf("config: ASYNC_WORKERS must be positive, got %d", o.AsyncWorkers)
	}
	if o.PaymentSuccessRate < 0 || o.PaymentSuccessRate > 1 {
		return fmt.Errorf("config: PAYMENT_SUCCESS_RATE must be within [0,1], got %v", o.PaymentSuccessRate)
	}
	if o.PaymentDelayMax < o.PaymentDelayMin || o.InventoryDelayMax < o.InventoryDelayMin {
		return fmt.Errorf("config: delay max must not be below delay min")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (t TelemetryConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(t.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

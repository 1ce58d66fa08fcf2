// Package config loads the storefront settings.
//
// Values come from built-in defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables. Later sources win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	LogLevel        string        `yaml:"log_level"`
	SeedDemoData    bool          `yaml:"seed_demo_data"`

	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Auth    AuthConfig    `yaml:"auth"`
	Tracing TracingConfig `yaml:"tracing"`
}

type DBConfig struct {
	Driver       string `yaml:"driver"`
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig leaves Addr empty to disable the idempotency cache.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// KafkaConfig leaves Brokers empty to only log events.
type KafkaConfig struct {
	Brokers          []string `yaml:"brokers"`
	TopicOrderPlaced string   `yaml:"topic_order_placed"`
	TopicOrderStatus string   `yaml:"topic_order_status"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	Environment string  `yaml:"environment"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		RequestTimeout:  30 * time.Second,
		LogLevel:        "info",
		DB: DBConfig{
			Driver: "sqlite",
			URL:    "./data/storefront.db",
		},
		Redis: RedisConfig{IdempotencyTTL: 24 * time.Hour},
		Kafka: KafkaConfig{
			TopicOrderPlaced: "orders.placed",
			TopicOrderStatus: "orders.status-changed",
		},
		Tracing: TracingConfig{
			ServiceName: "storefront-api",
			Endpoint:    "localhost:4317",
			Environment: "local",
		},
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	env := envReader{getenv: getenv}
	cfg.HTTPAddr = env.str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ShutdownTimeout = env.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RequestTimeout = env.duration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.SeedDemoData = env.boolean("SEED_DEMO_DATA", cfg.SeedDemoData)

	cfg.DB.Driver = env.str("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.URL = env.str("DATABASE_URL", cfg.DB.URL)
	cfg.DB.MaxOpenConns = env.integer("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)

	cfg.Redis.Addr = env.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.IdempotencyTTL = env.duration("IDEMPOTENCY_TTL", cfg.Redis.IdempotencyTTL)

	cfg.Kafka.Brokers = env.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TopicOrderPlaced = env.str("KAFKA_TOPIC_ORDER_PLACED", cfg.Kafka.TopicOrderPlaced)
	cfg.Kafka.TopicOrderStatus = env.str("KAFKA_TOPIC_ORDER_STATUS", cfg.Kafka.TopicOrderStatus)

	cfg.Auth.JWTSecret = env.str("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Tracing.Enabled = env.boolean("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ServiceName = env.str("OTEL_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.Endpoint = env.str("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Environment = env.str("OTEL_RESOURCE_ATTRIBUTES_ENV", cfg.Tracing.Environment)

	if len(env.errs) > 0 {
		return Config{}, errors.Join(env.errs...)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("config: JWT_SECRET is required"))
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported DB_DRIVER %q", c.DB.Driver))
	}
	if c.DB.URL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL is required"))
	}
	if c.Redis.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("config: IDEMPOTENCY_TTL must be positive"))
	}
	return errors.Join(errs...)
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key, fallback string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return d
}

func (e *envReader) list(key string, fallback []string) []string {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

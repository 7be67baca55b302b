// Package config loads service configuration from defaults, an optional TOML
// file named by CONFIG_FILE, a .env file and the process environment, in that
// order of increasing precedence.
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
	"github.com/pelletier/go-toml/v2"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Duration decodes TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type Config struct {
	Service            string   `toml:"service"`
	Env                string   `toml:"env"`
	LogLevel           string   `toml:"log_level"`
	HTTPPort           string   `toml:"http_port"`
	GRPCPort           string   `toml:"grpc_port"`
	RequestTimeout     Duration `toml:"request_timeout"`
	ShutdownTimeout    Duration `toml:"shutdown_timeout"`
	MaxRequestBodySize int64    `toml:"max_request_body_size"`

	SessionStore  string       `toml:"session_store"`
	SessionTTL    Duration     `toml:"session_ttl"`
	SessionCookie CookieConfig `toml:"cookie"`
	IntentStore   string       `toml:"intent_store"`

	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Processor ProcessorConfig `toml:"processor"`
	Mail      MailConfig      `toml:"mail"`
}

type CookieConfig struct {
	Name   string `toml:"name"`
	Secure bool   `toml:"secure"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type PostgresConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	DBName        string `toml:"dbname"`
	MigrationsDir string `toml:"migrations_dir"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type ProcessorConfig struct {
	BaseURL            string   `toml:"base_url"`
	ClientID           string   `toml:"client_id"`
	Secret             string   `toml:"secret"`
	Timeout            Duration `toml:"timeout"`
	BreakerFailures    uint32   `toml:"breaker_failures"`
	BreakerOpenTimeout Duration `toml:"breaker_open_timeout"`
}

type MailConfig struct {
	SendGridAPIKey string   `toml:"sendgrid_api_key"`
	FromEmail      string   `toml:"from_email"`
	FromName       string   `toml:"from_name"`
	ReplyTo        string   `toml:"reply_to"`
	BCC            []string `toml:"bcc"`
	Subject        string   `toml:"subject"`
}

func Default() *Config {
	return &Config{
		Service:            "checkout-service",
		Env:                "development",
		LogLevel:           "info",
		HTTPPort:           "8080",
		GRPCPort:           "50060",
		RequestTimeout:     Duration{30 * time.Second},
		ShutdownTimeout:    Duration{10 * time.Second},
		MaxRequestBodySize: 1 << 20,
		SessionStore:       BackendRedis,
		SessionTTL:         Duration{3 * time.Hour},
		SessionCookie:      CookieConfig{Name: "checkout_session"},
		IntentStore:        BackendPostgres,
		Redis:              RedisConfig{Addr: "localhost:6379"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			User:          "postgres",
			Password:      "postgres",
			DBName:        "checkout",
			MigrationsDir: "internal/repository/migrations",
		},
		Kafka: KafkaConfig{Topic: "payments-outbox"},
		Processor: ProcessorConfig{
			BaseURL:            "https://api.sandbox.paypal.com",
			Timeout:            Duration{10 * time.Second},
			BreakerFailures:    5,
			BreakerOpenTimeout: Duration{30 * time.Second},
		},
		Mail: MailConfig{Subject: "Your payment receipt"},
	}
}

// Load builds the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Service = getEnv("SERVICE_NAME", c.Service)
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = getEnv("GRPC_PORT", c.GRPCPort)
	c.SessionStore = getEnv("SESSION_STORE", c.SessionStore)
	c.IntentStore = getEnv("INTENT_STORE", c.IntentStore)
	c.SessionCookie.Name = getEnv("SESSION_COOKIE_NAME", c.SessionCookie.Name)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Postgres.Host = getEnv("DB_HOST", c.Postgres.Host)
	c.Postgres.User = getEnv("DB_USER", c.Postgres.User)
	c.Postgres.Password = getEnv("DB_PASSWORD", c.Postgres.Password)
	c.Postgres.DBName = getEnv("DB_NAME", c.Postgres.DBName)
	c.Postgres.MigrationsDir = getEnv("MIGRATIONS_DIR", c.Postgres.MigrationsDir)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Processor.BaseURL = getEnv("PROCESSOR_BASE_URL", c.Processor.BaseURL)
	c.Processor.ClientID = getEnv("PROCESSOR_CLIENT_ID", c.Processor.ClientID)
	c.Processor.Secret = getEnv("PROCESSOR_SECRET", c.Processor.Secret)

	c.Mail.SendGridAPIKey = getEnv("SENDGRID_API_KEY", c.Mail.SendGridAPIKey)
	c.Mail.FromEmail = getEnv("MAIL_FROM", c.Mail.FromEmail)
	c.Mail.FromName = getEnv("MAIL_FROM_NAME", c.Mail.FromName)
	c.Mail.ReplyTo = getEnv("MAIL_REPLY_TO", c.Mail.ReplyTo)
	if bcc := os.Getenv("MAIL_BCC"); bcc != "" {
		c.Mail.BCC = splitList(bcc)
	}

	var err error
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Postgres.Port, err = getEnvInt("DB_PORT", c.Postgres.Port); err != nil {
		return err
	}
	if c.SessionCookie.Secure, err = getEnvBool("SESSION_COOKIE_SECURE", c.SessionCookie.Secure); err != nil {
		return err
	}
	for key, d := range map[string]*Duration{
		"REQUEST_TIMEOUT":   &c.RequestTimeout,
		"SHUTDOWN_TIMEOUT":  &c.ShutdownTimeout,
		"SESSION_TTL":       &c.SessionTTL,
		"PROCESSOR_TIMEOUT": &c.Processor.Timeout,
	} {
		if v := os.Getenv(key); v != "" {
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SessionStore != BackendRedis && c.SessionStore != BackendMemory {
		errs = append(errs, fmt.Errorf("session_store must be %q or %q, got %q", BackendRedis, BackendMemory, c.SessionStore))
	}
	if c.IntentStore != BackendPostgres && c.IntentStore != BackendMemory {
		errs = append(errs, fmt.Errorf("intent_store must be %q or %q, got %q", BackendPostgres, BackendMemory, c.IntentStore))
	}
	if c.Processor.BaseURL == "" {
		errs = append(errs, errors.New("processor base url is required"))
	}
	if c.Processor.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("processor timeout must be positive"))
	}
	if c.SessionTTL.Duration <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.Mail.SendGridAPIKey != "" && c.Mail.FromEmail == "" {
		errs = append(errs, errors.New("mail from address is required when sendgrid is enabled"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

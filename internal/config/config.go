package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`

	Postgres Postgres `validate:"required"`

	Provider Provider `validate:"required"`

	Checkout Checkout `validate:"required"`

	Kafka Kafka `validate:"required"`

	Cache Cache
}

type Http struct {
	Host string `validate:"required,hostname|ip"`
	Port string `validate:"required,gt=0,lte=65535"`
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

type Postgres struct {
	Host     string `validate:"required,hostname|ip"`
	Port     int    `validate:"required,gt=0,lte=65535"`
	DBName   string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`

	SSLMode string `validate:"required,oneof=disable require verify-ca verify-full"`

	MaxOpenConns    int           `validate:"gte=1"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
}

// Provider holds payment provider credentials. WebhookTolerance bounds how
// old a signed webhook timestamp may be before the event is rejected.
type Provider struct {
	BaseURL          string        `validate:"required,url"`
	SecretKey        string        `validate:"required"`
	WebhookSecret    string        `validate:"required"`
	WebhookTolerance time.Duration `validate:"gte=0"`
}

// Checkout holds the storefront constants used when creating sessions and
// when reconciling completed payments.
type Checkout struct {
	ShippingFeeMinor      int64  `validate:"gte=0"`
	DefaultPickupLocation string `validate:"required"`
	SuccessURL            string `validate:"required,url"`
	CancelURL             string `validate:"required,url"`
	SalesEmail            string `validate:"required,email"`
}

type Kafka struct {
	Brokers    []string `validate:"required,min=1,dive,hostname_port"`
	EmailTopic string   `validate:"required"`

	BatchTimeout time.Duration `validate:"gte=0"`
}

type Cache struct {
	Capacity int           `validate:"gte=1"`
	TTL      time.Duration `validate:"gt=0"`
}

func New() Config {
	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host: env("HOST", "localhost"),
			Port: env("PORT", "8080"),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:3000"), ","),
		},

		Postgres: Postgres{
			Port:     envInt("POSTGRES_PORT", 5432),
			Host:     env("POSTGRES_HOST", "localhost"),
			DBName:   env("POSTGRES_DB", "bookstore"),
			User:     env("POSTGRES_USER", ""),
			Password: env("POSTGRES_PASSWORD", ""),

			SSLMode: env("POSTGRES_SSL_MODE", "disable"),

			MaxOpenConns:    envInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("POSTGRES_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: envDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Provider: Provider{
			BaseURL:          env("PROVIDER_BASE_URL", "https://api.payments.example.com"),
			SecretKey:        env("PROVIDER_SECRET_KEY", ""),
			WebhookSecret:    env("PROVIDER_WEBHOOK_SECRET", ""),
			WebhookTolerance: envDuration("PROVIDER_WEBHOOK_TOLERANCE", 5*time.Minute),
		},

		Checkout: Checkout{
			ShippingFeeMinor:      envInt64("SHIPPING_FEE_MINOR", 500),
			DefaultPickupLocation: env("DEFAULT_PICKUP_LOCATION", "Main Street store"),
			SuccessURL:            env("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
			CancelURL:             env("CHECKOUT_CANCEL_URL", "http://localhost:3000/cart"),
			SalesEmail:            env("SALES_NOTIFICATION_EMAIL", "sales@example.com"),
		},

		Kafka: Kafka{
			Brokers:      strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),
			EmailTopic:   env("KAFKA_EMAIL_TOPIC", "email-jobs"),
			BatchTimeout: envDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
		},

		Cache: Cache{
			Capacity: envInt("CACHE_CAPACITY", 1000),
			TTL:      envDuration("CACHE_TTL", 10*time.Minute),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Package config loads process settings from a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"fulfillment-service/internal/models"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	PaymentRazorpay = "razorpay"
	PaymentStripe   = "stripe"
)

type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (s SMTP) Enabled() bool {
	return s.Host != ""
}

type Config struct {
	ServiceName    string
	Environment    string
	Port           string
	GRPCPort       string
	EndpointPrefix string
	LogLevel       string

	StoreDriver string
	DatabaseURL string

	PaymentProvider  string
	RazorpaySecret   string
	StripeKey        string
	EgglessSurcharge decimal.Decimal

	RedisAddr string
	ReplayTTL time.Duration

	KafkaBrokers   []string
	NotifyConsumer bool
	NotifyQueue    int
	SMTP           SMTP
	OperatorEmail  string

	ConsulAddr       string
	ServiceHost      string
	JWTPublicKeyPath string
	OTLPEndpoint     string
	// TraceStdout prints spans and metrics to stdout when no OTLP endpoint is set.
	TraceStdout bool
}

// Load reads .env when present, then builds the config from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	surcharge, err := decimal.NewFromString(get("EGGLESS_SURCHARGE", "30"))
	if err != nil {
		errs = append(errs, fmt.Errorf("EGGLESS_SURCHARGE: %w", err))
	}
	ttl, err := time.ParseDuration(get("PAYMENT_REPLAY_TTL", "24h"))
	if err != nil {
		errs = append(errs, fmt.Errorf("PAYMENT_REPLAY_TTL: %w", err))
	}
	queue, err := strconv.Atoi(get("NOTIFY_QUEUE_SIZE", "64"))
	if err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_QUEUE_SIZE: %w", err))
	}
	consumer, err := strconv.ParseBool(get("NOTIFY_CONSUMER", "true"))
	if err != nil {
		errs = append(errs, fmt.Errorf("NOTIFY_CONSUMER: %w", err))
	}
	traceStdout, err := strconv.ParseBool(get("OTEL_TRACES_STDOUT", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_STDOUT: %w", err))
	}

	c := Config{
		ServiceName:    get("OTEL_SERVICE_NAME", "fulfillment-service"),
		Environment:    get("ENVIRONMENT", "local"),
		Port:           get("PORT", "8080"),
		GRPCPort:       get("GRPC_PORT", "9090"),
		EndpointPrefix: get("SERVICE_ENDPOINT_PREFIX", "/v1"),
		LogLevel:       get("LOG_LEVEL", "info"),

		StoreDriver: strings.ToLower(get("STORE_DRIVER", StorePostgres)),
		DatabaseURL: get("DATABASE_URL", ""),

		PaymentProvider:  strings.ToLower(get("PAYMENT_PROVIDER", PaymentRazorpay)),
		RazorpaySecret:   get("RAZORPAY_KEY_SECRET", ""),
		StripeKey:        get("STRIPE_TEST_KEY", ""),
		EgglessSurcharge: surcharge,

		RedisAddr: get("REDIS_ADDR", ""),
		ReplayTTL: ttl,

		KafkaBrokers:   splitList(get("KAFKA_BROKERS", "")),
		NotifyConsumer: consumer,
		NotifyQueue:    queue,
		SMTP: SMTP{
			Host:     get("SMTP_HOST", ""),
			Port:     get("SMTP_PORT", "587"),
			Username: get("SMTP_USERNAME", ""),
			Password: get("SMTP_PASSWORD", ""),
			From:     get("SMTP_FROM", "no-reply@example.com"),
		},
		OperatorEmail: get("OPERATOR_EMAIL", ""),

		ConsulAddr:       get("CONSUL_ADDR", ""),
		ServiceHost:      get("SERVICE_HOST", "localhost"),
		JWTPublicKeyPath: get("JWT_PUBLIC_KEY_PATH", "pubkey.pem"),
		OTLPEndpoint:     get("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TraceStdout:      traceStdout,
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings that the selected drivers depend on.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.PaymentProvider {
	case PaymentRazorpay:
		if c.RazorpaySecret == "" {
			errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required for razorpay"))
		}
	case PaymentStripe:
		if c.StripeKey == "" {
			errs = append(errs, errors.New("STRIPE_TEST_KEY is required for stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider))
	}

	if !models.ValidPrice(c.EgglessSurcharge) {
		errs = append(errs, errors.New("EGGLESS_SURCHARGE must be a non-negative amount with at most 2 decimals"))
	}
	if c.ReplayTTL <= 0 {
		errs = append(errs, errors.New("PAYMENT_REPLAY_TTL must be positive"))
	}
	if c.NotifyQueue <= 0 {
		errs = append(errs, errors.New("NOTIFY_QUEUE_SIZE must be positive"))
	}
	if c.SMTP.Enabled() && c.SMTP.From == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

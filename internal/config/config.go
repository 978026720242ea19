package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderStub   = "stub"
	ProviderStripe = "stripe"
)

type Config struct {
	ServiceName     string
	Environment     string
	LogLevel        string
	HTTPPort        string
	PublicBaseURL   string // return address for checkout; overrides the Origin header when set
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Payment  PaymentConfig
	Session  SessionConfig
}

type DatabaseConfig struct {
	Path string
}

// RedisConfig configures the catalog cache; an empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures checkout event publishing; no brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type PaymentConfig struct {
	Provider        string
	StripeSecretKey string
	VerifyPayment   bool
	BreakerTimeout  time.Duration
	BreakerFailures uint32
}

type SessionConfig struct {
	CookieName      string
	CookieSecure    bool
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("SERVICE_NAME", "storefront")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_PATH", "./storefront.db")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CATALOG_CACHE_TTL", "15m")
	v.SetDefault("KAFKA_TOPIC", "storefront-checkout")
	v.SetDefault("PAYMENT_PROVIDER", ProviderStub)
	v.SetDefault("CHECKOUT_VERIFY_PAYMENT", false)
	v.SetDefault("PAYMENT_BREAKER_TIMEOUT", "30s")
	v.SetDefault("PAYMENT_BREAKER_FAILURES", 5)
	v.SetDefault("SESSION_COOKIE_NAME", "sf_session")
	v.SetDefault("SESSION_COOKIE_SECURE", false)
	v.SetDefault("SESSION_IDLE_TTL", "2h")
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "1m")

	v.AutomaticEnv()

	// .env is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		ServiceName:     v.GetString("SERVICE_NAME"),
		Environment:     v.GetString("ENVIRONMENT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		HTTPPort:        v.GetString("HTTP_PORT"),
		PublicBaseURL:   strings.TrimSuffix(strings.TrimSpace(v.GetString("PUBLIC_BASE_URL")), "/"),
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		Database: DatabaseConfig{
			Path: v.GetString("DB_PATH"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CATALOG_CACHE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Payment: PaymentConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("PAYMENT_PROVIDER"))),
			StripeSecretKey: strings.TrimSpace(v.GetString("STRIPE_SECRET_KEY")),
			VerifyPayment:   v.GetBool("CHECKOUT_VERIFY_PAYMENT"),
			BreakerTimeout:  v.GetDuration("PAYMENT_BREAKER_TIMEOUT"),
			BreakerFailures: v.GetUint32("PAYMENT_BREAKER_FAILURES"),
		},
		Session: SessionConfig{
			CookieName:      v.GetString("SESSION_COOKIE_NAME"),
			CookieSecure:    v.GetBool("SESSION_COOKIE_SECURE"),
			IdleTTL:         v.GetDuration("SESSION_IDLE_TTL"),
			CleanupInterval: v.GetDuration("SESSION_CLEANUP_INTERVAL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Payment.Provider {
	case ProviderStub:
	case ProviderStripe:
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider)
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

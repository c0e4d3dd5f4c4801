package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/nikpour310/accountinox/pkg/config"
)

// Config holds all configuration for the fulfillment service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"accountinox"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"accountinox_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"accountinox"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Payment gateways
	ZarinpalMerchantID string `env:"ZARINPAL_MERCHANT_ID" envDefault:""`
	ZarinpalSandbox    bool   `env:"ZARINPAL_SANDBOX" envDefault:"true"`
	ZibalMerchant      string `env:"ZIBAL_MERCHANT" envDefault:""`
	ZibalSandbox       bool   `env:"ZIBAL_SANDBOX" envDefault:"true"`
	MockGateway        bool   `env:"MOCK_GATEWAY" envDefault:"false"`

	// CallbackBaseURL is the public origin gateways redirect back to.
	CallbackBaseURL string        `env:"CALLBACK_BASE_URL" envDefault:"http://localhost:8080"`
	VerifyTimeout   time.Duration `env:"VERIFY_TIMEOUT" envDefault:"10s"`

	// Reaper. Auto release reopens stale admissions for redelivery; it stays
	// off unless an operator has confirmed the gateway retries reliably.
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`
	ReaperGrace       time.Duration `env:"REAPER_GRACE" envDefault:"5m"`
	ReaperAutoRelease bool          `env:"REAPER_AUTO_RELEASE" envDefault:"false"`

	// ServiceKey guards the internal intake endpoints. Empty disables the
	// check, which is only acceptable in development.
	ServiceKey string `env:"SERVICE_KEY" envDefault:""`

	// PprofCIDRs allowlists access to the debug endpoints.
	PprofCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load fulfillment config: %w", err)
	}
	return cfg, nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

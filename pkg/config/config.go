package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BAZARIO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	BuyBox       BuyBoxConfig
	Checkout     CheckoutConfig
	Settlement   SettlementConfig
	Payouts      PayoutConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BAZARIO_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZARIO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BAZARIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZARIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAZARIO_DB_DSN"`
	Driver string `envconfig:"BAZARIO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BAZARIO_DB_HOST"`
	Port     int    `envconfig:"BAZARIO_DB_PORT" default:"5432"`
	User     string `envconfig:"BAZARIO_DB_USER"`
	Password string `envconfig:"BAZARIO_DB_PASSWORD"`
	Name     string `envconfig:"BAZARIO_DB_NAME"`
	SSLMode  string `envconfig:"BAZARIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZARIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZARIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZARIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZARIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either BAZARIO_DB_DSN or host/user/name settings are required")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	query := dsn.Query()
	query.Set("sslmode", d.SSLMode)
	dsn.RawQuery = query.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZARIO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZARIO_REDIS_ADDR"`
	Password     string        `envconfig:"BAZARIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZARIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZARIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZARIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZARIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZARIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZARIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// BuyBoxConfig holds the fixed scoring weights for offer resolution. The four
// weights are recombined into a composite score out of their sum; changing a
// weight rebalances the ranking without touching the algorithm.
type BuyBoxConfig struct {
	PriceWeight        float64 `envconfig:"BAZARIO_BUYBOX_PRICE_WEIGHT" default:"40"`
	ReputationWeight   float64 `envconfig:"BAZARIO_BUYBOX_REPUTATION_WEIGHT" default:"30"`
	ShippingWeight     float64 `envconfig:"BAZARIO_BUYBOX_SHIPPING_WEIGHT" default:"20"`
	AvailabilityWeight float64 `envconfig:"BAZARIO_BUYBOX_AVAILABILITY_WEIGHT" default:"10"`
	AvailabilityCap    int     `envconfig:"BAZARIO_BUYBOX_AVAILABILITY_CAP" default:"100"`
}

type CheckoutConfig struct {
	// TaxRateBPS is the flat tax rate in basis points (1200 = 12%).
	TaxRateBPS int64 `envconfig:"BAZARIO_CHECKOUT_TAX_RATE_BPS" default:"1200"`
}

type SettlementConfig struct {
	// CommissionRateBPS is the platform default commission in basis points,
	// applied when a shop carries no override.
	CommissionRateBPS int64 `envconfig:"BAZARIO_SETTLEMENT_COMMISSION_RATE_BPS" default:"1000"`
	// PlatformWalletID is the wallet credited with commission. Configured
	// explicitly rather than resolved from an admin user at call time.
	PlatformWalletID string        `envconfig:"BAZARIO_SETTLEMENT_PLATFORM_WALLET_ID" required:"true"`
	HoldWindow       time.Duration `envconfig:"BAZARIO_SETTLEMENT_HOLD_WINDOW" default:"168h"`
	RefundOnCancel   bool          `envconfig:"BAZARIO_SETTLEMENT_REFUND_ON_CANCEL" default:"true"`
	ReleaseBatchSize int           `envconfig:"BAZARIO_SETTLEMENT_RELEASE_BATCH_SIZE" default:"100"`
	ReleaseInterval  time.Duration `envconfig:"BAZARIO_SETTLEMENT_RELEASE_INTERVAL" default:"1h"`
	ConfirmTTL       time.Duration `envconfig:"BAZARIO_SETTLEMENT_CONFIRM_TTL" default:"720h"`
}

type PayoutConfig struct {
	MinimumCents int `envconfig:"BAZARIO_PAYOUT_MINIMUM_CENTS" default:"1000"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BAZARIO_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BAZARIO_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BAZARIO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BAZARIO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"BAZARIO_PUBSUB_DOMAIN_TOPIC" default:"bazario-domain-events"`
	DomainSubscription string `envconfig:"BAZARIO_PUBSUB_DOMAIN_SUBSCRIPTION" default:"bazario-domain-events-sub"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAZARIO_AUTO_MIGRATE" default:"false"`
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	// EnvPrefix is intentionally empty: every field names its variable in
	// full so grepping for CANOPAY_ finds the whole surface.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Earnings EarningsConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
	Outbox   OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Earnings.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CANOPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"CANOPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CANOPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CANOPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CANOPAY_DB_DSN"`
	Driver string `envconfig:"CANOPAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CANOPAY_DB_HOST"`
	Port     int    `envconfig:"CANOPAY_DB_PORT" default:"5432"`
	User     string `envconfig:"CANOPAY_DB_USER"`
	Password string `envconfig:"CANOPAY_DB_PASSWORD"`
	Name     string `envconfig:"CANOPAY_DB_NAME"`
	SSLMode  string `envconfig:"CANOPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CANOPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CANOPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CANOPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CANOPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"CANOPAY_DB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	missing := []string{}
	if db.Host == "" {
		missing = append(missing, "CANOPAY_DB_HOST")
	}
	if db.User == "" {
		missing = append(missing, "CANOPAY_DB_USER")
	}
	if db.Name == "" {
		missing = append(missing, "CANOPAY_DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("database configuration incomplete: set CANOPAY_DB_DSN or %s", strings.Join(missing, ", "))
	}
	db.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(db.User),
		url.QueryEscape(db.Password),
		db.Host,
		db.Port,
		db.Name,
		db.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"CANOPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CANOPAY_REDIS_ADDR"`
	Password     string        `envconfig:"CANOPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CANOPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CANOPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CANOPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CANOPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CANOPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CANOPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CANOPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CANOPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CANOPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

// EarningsConfig holds the money rules of the earnings core.
type EarningsConfig struct {
	// CommissionRate is the fraction of an order total the store earns when
	// the order event carries no pre-computed commission. Must be in (0,1].
	CommissionRate string `envconfig:"CANOPAY_EARNINGS_COMMISSION_RATE" default:"0.10"`
	// PayoutMinimumCents is the smallest payout a store member may request.
	PayoutMinimumCents int64 `envconfig:"CANOPAY_EARNINGS_PAYOUT_MINIMUM_CENTS" default:"50000"`
	// BankingKey is the hex-encoded 32-byte key used to seal banking details
	// at rest.
	BankingKey string `envconfig:"CANOPAY_EARNINGS_BANKING_KEY" required:"true"`
	// PayoutRateLimit caps payout requests per user and per store inside
	// PayoutRateWindow. Zero disables the limiter.
	PayoutRateLimit  int           `envconfig:"CANOPAY_EARNINGS_PAYOUT_RATE_LIMIT" default:"5"`
	PayoutRateWindow time.Duration `envconfig:"CANOPAY_EARNINGS_PAYOUT_RATE_WINDOW" default:"1h"`

	rate decimal.Decimal
}

func (e *EarningsConfig) validate() error {
	rate, err := decimal.NewFromString(e.CommissionRate)
	if err != nil {
		return fmt.Errorf("parsing commission rate: %w", err)
	}
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("commission rate %s out of range (0,1]", e.CommissionRate)
	}
	if e.PayoutMinimumCents < 0 {
		return fmt.Errorf("payout minimum must be non-negative")
	}
	if e.PayoutRateLimit < 0 {
		return fmt.Errorf("payout rate limit must be non-negative")
	}
	if e.PayoutRateLimit > 0 && e.PayoutRateWindow <= 0 {
		return fmt.Errorf("payout rate window must be positive when a limit is set")
	}
	e.rate = rate
	return nil
}

// Rate returns the parsed commission rate. Configs built outside Load fall
// back to parsing CommissionRate directly; an unparsable value yields zero,
// which the commission calculator rejects.
func (e EarningsConfig) Rate() decimal.Decimal {
	if !e.rate.IsZero() {
		return e.rate
	}
	rate, err := decimal.NewFromString(e.CommissionRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CANOPAY_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CANOPAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CANOPAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"CANOPAY_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription string `envconfig:"CANOPAY_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	DomainTopic        string `envconfig:"CANOPAY_PUBSUB_DOMAIN_TOPIC" required:"true"`
	DomainSubscription string `envconfig:"CANOPAY_PUBSUB_DOMAIN_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset           string `envconfig:"CANOPAY_BIGQUERY_DATASET" default:"canopay"`
	LedgerEventsTable string `envconfig:"CANOPAY_BIGQUERY_LEDGER_TABLE" default:"ledger_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CANOPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CANOPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CANOPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"CANOPAY_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

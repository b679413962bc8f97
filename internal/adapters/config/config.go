package config

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

// Storage drivers
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Storage       StorageConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Fund          FundConfig
	Oracle        OracleConfig
	Auth          AuthConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"navfund"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`
}

type StorageConfig struct {
	Driver string `envconfig:"STORAGE_DRIVER" default:"memory"` // memory|postgres
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
	Migrate  bool   `envconfig:"POSTGRES_MIGRATE" default:"true"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"navfund"`

	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`

	LockTTL time.Duration `envconfig:"REDIS_LOCK_TTL" default:"30s"` // per-fund operation lock
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"navfund"`
}

// FundConfig describes the fund this process serves and its genesis bundle,
// used when the fund does not exist yet.
type FundConfig struct {
	ID               uuid.UUID        `envconfig:"FUND_ID"`
	ProgramID        solana.PublicKey `envconfig:"FUND_PROGRAM_ID"`
	AdminKey         string           `envconfig:"FUND_ADMIN_KEY"` // base58 private key, signs genesis
	OracleSigner     solana.PublicKey `envconfig:"FUND_ORACLE_SIGNER"`
	PaymentMint      solana.PublicKey `envconfig:"FUND_PAYMENT_MINT"`
	ShareMint        solana.PublicKey `envconfig:"FUND_SHARE_MINT"`
	ManagementFeeBps uint16           `envconfig:"FUND_MANAGEMENT_FEE_BPS" default:"0"`
	MintFeeBps       uint16           `envconfig:"FUND_MINT_FEE_BPS" default:"0"`
	RedemptionFeeBps uint16           `envconfig:"FUND_REDEMPTION_FEE_BPS" default:"0"`
	InitialNav       uint64           `envconfig:"FUND_INITIAL_NAV" default:"1000"` // cents
}

// GenesisParams converts the config into the genesis bundle.
func (c FundConfig) GenesisParams() fund.GenesisParams {
	return fund.GenesisParams{
		FundID:       c.ID,
		OracleSigner: c.OracleSigner,
		Fees: fund.FeeSchedule{
			ManagementFeeBps: c.ManagementFeeBps,
			MintFeeBps:       c.MintFeeBps,
			RedemptionFeeBps: c.RedemptionFeeBps,
		},
		InitialNav:  c.InitialNav,
		PaymentMint: c.PaymentMint,
		ShareMint:   c.ShareMint,
	}
}

// Configured reports whether a fund is configured at all.
func (c FundConfig) Configured() bool {
	return c.ID != uuid.Nil
}

// Admin parses the admin private key.
func (c FundConfig) Admin() (solana.PrivateKey, error) {
	return parsePrivateKey("FUND_ADMIN_KEY", c.AdminKey)
}

type OracleConfig struct {
	APIURL            string        `envconfig:"ORACLE_API_URL" default:"http://localhost:8000"`
	PrivateKey        string        `envconfig:"ORACLE_PRIVATE_KEY"` // base58, signs submit_nav
	RequestsPerSecond float64       `envconfig:"ORACLE_REQUESTS_PER_SECOND" default:"1"`
	Timeout           time.Duration `envconfig:"ORACLE_TIMEOUT" default:"10s"`
}

// Signer parses the oracle private key.
func (c OracleConfig) Signer() (solana.PrivateKey, error) {
	return parsePrivateKey("ORACLE_PRIVATE_KEY", c.PrivateKey)
}

type AuthConfig struct {
	MaxSkew time.Duration `envconfig:"AUTH_MAX_SKEW" default:"5m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for background workers
type WorkerConfig struct {
	NavSyncEnabled  bool          `envconfig:"WORKER_NAV_SYNC_ENABLED" default:"false"`
	NavSyncInterval time.Duration `envconfig:"WORKER_NAV_SYNC_INTERVAL" default:"5m"` // Pull oracle NAV every 5 minutes

	FundMonitorEnabled  bool          `envconfig:"WORKER_FUND_MONITOR_ENABLED" default:"true"`
	FundMonitorInterval time.Duration `envconfig:"WORKER_FUND_MONITOR_INTERVAL" default:"30s"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field requirements envconfig tags cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.Database == "" {
			return errors.Wrap(errors.ErrInvalidInput, "POSTGRES_HOST, POSTGRES_USER and POSTGRES_DB are required for postgres storage")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return errors.Wrap(errors.ErrInvalidInput, "REDIS_HOST is required when redis is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return errors.Wrap(errors.ErrInvalidInput, "CLICKHOUSE_HOST is required when clickhouse is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "KAFKA_BROKERS is required when kafka is enabled")
	}

	if c.Fund.Configured() {
		if c.Fund.ProgramID.IsZero() {
			return errors.Wrap(errors.ErrInvalidInput, "FUND_PROGRAM_ID is required")
		}
		if err := c.Fund.GenesisParams().Fees.Validate(); err != nil {
			return err
		}
	}
	if c.Workers.NavSyncEnabled && c.Oracle.PrivateKey == "" {
		return errors.Wrap(errors.ErrInvalidInput, "ORACLE_PRIVATE_KEY is required for the NAV sync worker")
	}

	return nil
}

func parsePrivateKey(name, value string) (solana.PrivateKey, error) {
	if value == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is not set", name)
	}
	key, err := solana.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s: %v", name, err)
	}
	return key, nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pos-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT" default:"json"`
	// CORSOrigins is a comma separated list of terminal front-end origins.
	CORSOrigins []string `envconfig:"POS_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POS_SERVICE_KIND" default:"api"`
	// MetricsAddr is where the background workers expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"POS_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`
	Driver string `envconfig:"POS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; 0 disables.
	SlowQuery time.Duration `envconfig:"POS_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"POS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"POS_JWT_EXPIRATION_MINUTES" default:"720"`
}

// CheckoutConfig controls tax policy and commit behaviour.
type CheckoutConfig struct {
	TaxEnabled     bool          `envconfig:"POS_CHECKOUT_TAX_ENABLED" default:"true"`
	TaxRatePercent string        `envconfig:"POS_CHECKOUT_TAX_RATE_PERCENT" default:"19"`
	TaxPlaces      int32         `envconfig:"POS_CHECKOUT_TAX_PLACES" default:"0"`
	CommitMode     string        `envconfig:"POS_CHECKOUT_COMMIT_MODE" default:"sequential"`
	CommitTimeout  time.Duration `envconfig:"POS_CHECKOUT_COMMIT_TIMEOUT" default:"0s"`
	IdempotencyTTL time.Duration `envconfig:"POS_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
	StockLocation  string        `envconfig:"POS_CHECKOUT_DEFAULT_LOCATION" default:"Bodega Principal"`
}

// Mode returns the parsed commit mode.
func (c CheckoutConfig) Mode() enums.CommitMode {
	return enums.CommitMode(strings.ToLower(strings.TrimSpace(c.CommitMode)))
}

// TaxRate parses TaxRatePercent.
func (c CheckoutConfig) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRatePercent))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvCheckoutTaxRate, c.TaxRatePercent, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvCheckoutTaxRate)
	}
	return rate, nil
}

// maxMoneyPlaces matches the scale of the numeric(12,2) money columns.
const maxMoneyPlaces = 2

func (c CheckoutConfig) validate() error {
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	if !c.Mode().IsValid() {
		return fmt.Errorf("invalid %s %q", EnvCheckoutCommitMode, c.CommitMode)
	}
	if c.TaxPlaces < 0 || c.TaxPlaces > maxMoneyPlaces {
		return fmt.Errorf("%s must be between 0 and %d", EnvCheckoutTaxPlaces, maxMoneyPlaces)
	}
	if c.CommitTimeout < 0 {
		return fmt.Errorf("%s must not be negative", EnvCheckoutCommitTimeout)
	}
	return nil
}

type RateLimitConfig struct {
	RequestsPerMinute int `envconfig:"POS_RATE_LIMIT_RPM" default:"600"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"POS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	Endpoint       string `envconfig:"POS_PUBSUB_ENDPOINT"`
	SalesTopic     string `envconfig:"POS_PUBSUB_SALES_TOPIC" default:"pos-sales"`
	InventoryTopic string `envconfig:"POS_PUBSUB_INVENTORY_TOPIC" default:"pos-inventory"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"POS_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"POS_CRON_INTERVAL" default:"1h"`
	JobTimeout        time.Duration `envconfig:"POS_CRON_JOB_TIMEOUT" default:"10m"`
	ReconcileLimit    int           `envconfig:"POS_CRON_RECONCILE_LIMIT" default:"500"`
	ReconcileLookback time.Duration `envconfig:"POS_CRON_RECONCILE_LOOKBACK" default:"72h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, DriverSQLite) {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	if strings.EqualFold(db.Driver, DriverMySQL) {
		db.DSN = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			db.LegacyUser, db.LegacyPassword, db.LegacyHost, db.LegacyPort, db.LegacyName)
		return nil
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

package config

const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"

	defaultSQLiteDSN = "file:pos.db?cache=shared"
)

const (
	EnvAppEnv = "POS_APP_ENV"
	EnvPort   = "POS_APP_PORT"

	EnvDBDSN    = "POS_DB_DSN"
	EnvDBDriver = "POS_DB_DRIVER"
	EnvDBHost   = "POS_DB_HOST"
	EnvDBUser   = "POS_DB_USER"
	EnvDBName   = "POS_DB_NAME"

	EnvRedisURL = "POS_REDIS_URL"

	EnvJWTSecret  = "POS_JWT_SECRET"
	EnvJWTIssuer  = "POS_JWT_ISSUER"
	EnvJWTExpMins = "POS_JWT_EXPIRATION_MINUTES"

	EnvCheckoutTaxEnabled    = "POS_CHECKOUT_TAX_ENABLED"
	EnvCheckoutTaxRate       = "POS_CHECKOUT_TAX_RATE_PERCENT"
	EnvCheckoutTaxPlaces     = "POS_CHECKOUT_TAX_PLACES"
	EnvCheckoutCommitMode    = "POS_CHECKOUT_COMMIT_MODE"
	EnvCheckoutCommitTimeout = "POS_CHECKOUT_COMMIT_TIMEOUT"

	EnvUseSQLite = "POS_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

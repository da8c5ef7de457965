package config

const (
	EnvPrefix = "MENUBOARD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	TransitionModeStrict = "strict"
	TransitionModeOpen   = "open"
)

const (
	EnvAppEnv                 = "MENUBOARD_APP_ENV"
	EnvPort                   = "MENUBOARD_APP_PORT"
	EnvDBDSN                  = "MENUBOARD_DB_DSN"
	EnvDBHost                 = "MENUBOARD_DB_HOST"
	EnvDBUser                 = "MENUBOARD_DB_USER"
	EnvDBName                 = "MENUBOARD_DB_NAME"
	EnvDBPassword             = "MENUBOARD_DB_PASSWORD"
	EnvRedisURL               = "MENUBOARD_REDIS_URL"
	EnvJWTSecret              = "MENUBOARD_JWT_SECRET"
	EnvJWTIssuer              = "MENUBOARD_JWT_ISSUER"
	EnvJWTExpMins             = "MENUBOARD_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "MENUBOARD_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "MENUBOARD_GCP_PROJECT_ID"
	EnvGCSBucket              = "MENUBOARD_GCS_BUCKET_NAME"
	EnvPubSubOrdersTopic      = "MENUBOARD_PUBSUB_ORDERS_TOPIC"
	EnvUseSQLite              = "MENUBOARD_USE_SQLITE"
	EnvOrdersTransitionMode   = "MENUBOARD_ORDERS_TRANSITION_MODE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

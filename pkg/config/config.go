package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"google.golang.org/api/option"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Orders        OrdersConfig
	Cart          CartConfig
	CORS          CORSConfig
	Tracing       TracingConfig
	GCP           GCPConfig
	GCS           GCSConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = cfg.FeatureFlags.SQLitePath
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MENUBOARD_APP_ENV" required:"true"`
	Port         string `envconfig:"MENUBOARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MENUBOARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MENUBOARD_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MENUBOARD_LOG_FORMAT" default:"json"`
	PublicURL    string `envconfig:"MENUBOARD_PUBLIC_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MENUBOARD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MENUBOARD_DB_DSN"`
	Driver string `envconfig:"MENUBOARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MENUBOARD_DB_HOST"`
	LegacyPort     int    `envconfig:"MENUBOARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MENUBOARD_DB_USER"`
	LegacyPassword string `envconfig:"MENUBOARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"MENUBOARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"MENUBOARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MENUBOARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MENUBOARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MENUBOARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MENUBOARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery  time.Duration `envconfig:"MENUBOARD_DB_SLOW_QUERY" default:"200ms"`
	LogQueries bool          `envconfig:"MENUBOARD_DB_LOG_QUERIES" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MENUBOARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MENUBOARD_REDIS_ADDR"`
	Password     string        `envconfig:"MENUBOARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"MENUBOARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MENUBOARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MENUBOARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MENUBOARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MENUBOARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MENUBOARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MENUBOARD_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MENUBOARD_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MENUBOARD_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MENUBOARD_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	MinLength        int `envconfig:"MENUBOARD_PASSWORD_MIN_LENGTH" default:"6"`
	ArgonMemoryKB    int `envconfig:"MENUBOARD_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MENUBOARD_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MENUBOARD_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MENUBOARD_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MENUBOARD_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MENUBOARD_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MENUBOARD_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MENUBOARD_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MENUBOARD_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MENUBOARD_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MENUBOARD_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"MENUBOARD_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"MENUBOARD_SQLITE_PATH" default:"menuboard.db"`
	AutoMigrate bool   `envconfig:"MENUBOARD_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MENUBOARD_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	IdempotencyTTL       time.Duration `envconfig:"MENUBOARD_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

// OrdersConfig tunes order submission and the live order feed.
type OrdersConfig struct {
	TransitionMode  string        `envconfig:"MENUBOARD_ORDERS_TRANSITION_MODE" default:"open"`
	SubmitGuardTTL  time.Duration `envconfig:"MENUBOARD_ORDERS_SUBMIT_GUARD_TTL" default:"30s"`
	LiveHeartbeat   time.Duration `envconfig:"MENUBOARD_ORDERS_LIVE_HEARTBEAT" default:"25s"`
	HistoryPageSize int           `envconfig:"MENUBOARD_ORDERS_HISTORY_PAGE_SIZE" default:"25"`
}

// StrictTransitions reports whether status changes follow the forward
// lifecycle only. Anything but an explicit "strict" is open.
func (o OrdersConfig) StrictTransitions() bool {
	return strings.EqualFold(strings.TrimSpace(o.TransitionMode), TransitionModeStrict)
}

// OpenTransitions reports whether any-to-any status changes are allowed.
func (o OrdersConfig) OpenTransitions() bool {
	return !o.StrictTransitions()
}

func (o OrdersConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(o.TransitionMode))
	switch mode {
	case "", TransitionModeStrict, TransitionModeOpen:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvOrdersTransitionMode, TransitionModeStrict, TransitionModeOpen, o.TransitionMode)
	}
}

type CartConfig struct {
	TTL time.Duration `envconfig:"MENUBOARD_CART_TTL" default:"12h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MENUBOARD_CORS_ALLOWED_ORIGINS" default:"*"`
}

type TracingConfig struct {
	Enabled        bool    `envconfig:"MENUBOARD_TRACING_ENABLED" default:"false"`
	JaegerEndpoint string  `envconfig:"MENUBOARD_TRACING_JAEGER_ENDPOINT" default:"http://localhost:14268/api/traces"`
	SampleRatio    float64 `envconfig:"MENUBOARD_TRACING_SAMPLE_RATIO" default:"1"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MENUBOARD_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"MENUBOARD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MENUBOARD_GOOGLE_APPLICATION_CREDENTIALS"`
}

// ClientOptions picks inline JSON credentials over a credentials file. With
// neither set the Google clients fall back to application default
// credentials.
func (g GCPConfig) ClientOptions(extra ...option.ClientOption) []option.ClientOption {
	opts := append([]option.ClientOption(nil), extra...)
	switch {
	case strings.TrimSpace(g.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(g.CredentialsJSON)))
	case strings.TrimSpace(g.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(g.ApplicationCredentials))
	}
	return opts
}

type GCSConfig struct {
	BucketName    string `envconfig:"MENUBOARD_GCS_BUCKET_NAME" required:"true"`
	PublicBaseURL string `envconfig:"MENUBOARD_GCS_PUBLIC_BASE_URL" default:"https://storage.googleapis.com"`
	MaxUploadMB   int    `envconfig:"MENUBOARD_GCS_MAX_UPLOAD_MB" default:"5"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"MENUBOARD_PUBSUB_ORDERS_TOPIC" required:"true"`
	AnalyticsSubscription string `envconfig:"MENUBOARD_PUBSUB_ANALYTICS_SUBSCRIPTION"`
	// AutoCreate creates a missing topic or subscription. Meant for the
	// emulator and fresh projects.
	AutoCreate bool `envconfig:"MENUBOARD_PUBSUB_AUTO_CREATE" default:"false"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"MENUBOARD_BIGQUERY_DATASET" default:"menuboard"`
	OrderEventsTable string `envconfig:"MENUBOARD_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
	// AutoCreate creates a missing dataset or table instead of failing boot.
	AutoCreate bool   `envconfig:"MENUBOARD_BIGQUERY_AUTO_CREATE" default:"false"`
	Location   string `envconfig:"MENUBOARD_BIGQUERY_LOCATION" default:"US"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MENUBOARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MENUBOARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MENUBOARD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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

// MaintenanceConfig drives the cron worker's retention jobs.
type MaintenanceConfig struct {
	Interval        time.Duration `envconfig:"MENUBOARD_MAINTENANCE_INTERVAL" default:"6h"`
	LockTTL         time.Duration `envconfig:"MENUBOARD_MAINTENANCE_LOCK_TTL" default:"1h"`
	OutboxRetention time.Duration `envconfig:"MENUBOARD_MAINTENANCE_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"MENUBOARD_MAINTENANCE_DLQ_RETENTION" default:"2160h"`
}

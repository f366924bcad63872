package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "JMAB_DB_DSN"
	EnvDBHost = "JMAB_DB_HOST"
	EnvDBUser = "JMAB_DB_USER"
	EnvDBName = "JMAB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Paymongo     PaymongoConfig
	Checkout     CheckoutConfig
	Eventing     EventingConfig
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
	Env          string `envconfig:"JMAB_APP_ENV" required:"true"`
	Port         string `envconfig:"JMAB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"JMAB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JMAB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"JMAB_DB_DSN"`
	Driver string `envconfig:"JMAB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"JMAB_DB_HOST"`
	LegacyPort     int    `envconfig:"JMAB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"JMAB_DB_USER"`
	LegacyPassword string `envconfig:"JMAB_DB_PASSWORD"`
	LegacyName     string `envconfig:"JMAB_DB_NAME"`
	LegacySSLMode  string `envconfig:"JMAB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JMAB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JMAB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JMAB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JMAB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JMAB_REDIS_URL"`
	Address      string        `envconfig:"JMAB_REDIS_ADDR"`
	Password     string        `envconfig:"JMAB_REDIS_PASSWORD"`
	DB           int           `envconfig:"JMAB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JMAB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JMAB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JMAB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JMAB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JMAB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"JMAB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"JMAB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"JMAB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PaymongoConfig struct {
	SecretKey     string        `envconfig:"JMAB_PAYMONGO_SECRET_KEY" required:"true"`
	WebhookSecret string        `envconfig:"JMAB_PAYMONGO_WEBHOOK_SECRET" required:"true"`
	BaseURL       string        `envconfig:"JMAB_PAYMONGO_BASE_URL" default:"https://api.paymongo.com"`
	Timeout       time.Duration `envconfig:"JMAB_PAYMONGO_TIMEOUT" default:"15s"`
}

type CheckoutConfig struct {
	SuccessURL string `envconfig:"JMAB_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL  string `envconfig:"JMAB_CHECKOUT_CANCEL_URL" required:"true"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"JMAB_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	OrderEventsChannel    string        `envconfig:"JMAB_ORDER_EVENTS_CHANNEL" default:"jmab.order-events"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"JMAB_AUTO_MIGRATE" default:"false"`
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

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	MercadoPago  MercadoPagoConfig
	Checkout     CheckoutConfig
	Webhooks     WebhookConfig
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
	Env          string `envconfig:"PLATERUSH_APP_ENV" required:"true"`
	Port         string `envconfig:"PLATERUSH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PLATERUSH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PLATERUSH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PLATERUSH_DB_DSN"`
	Driver string `envconfig:"PLATERUSH_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PLATERUSH_DB_HOST"`
	Port     int    `envconfig:"PLATERUSH_DB_PORT" default:"5432"`
	User     string `envconfig:"PLATERUSH_DB_USER"`
	Password string `envconfig:"PLATERUSH_DB_PASSWORD"`
	Name     string `envconfig:"PLATERUSH_DB_NAME"`
	SSLMode  string `envconfig:"PLATERUSH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PLATERUSH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PLATERUSH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PLATERUSH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PLATERUSH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PLATERUSH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PLATERUSH_REDIS_ADDR"`
	Password     string        `envconfig:"PLATERUSH_REDIS_PASSWORD"`
	DB           int           `envconfig:"PLATERUSH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PLATERUSH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PLATERUSH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PLATERUSH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PLATERUSH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PLATERUSH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PLATERUSH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PLATERUSH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PLATERUSH_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PLATERUSH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PLATERUSH_AUTO_MIGRATE" default:"false"`

	// SimulateRefunds fabricates a successful refund when the payment
	// gateway is unreachable. Refused outside dev environments; every
	// simulated refund is logged and counted so its use stays auditable.
	SimulateRefunds bool `envconfig:"PLATERUSH_FEATURE_SIMULATE_REFUNDS" default:"false"`
}

type MercadoPagoConfig struct {
	AccessToken    string        `envconfig:"PLATERUSH_MP_ACCESS_TOKEN"`
	Environment    string        `envconfig:"PLATERUSH_MP_ENV" default:"sandbox"`
	WebhookSecret  string        `envconfig:"PLATERUSH_MP_WEBHOOK_SECRET"`
	RequestTimeout time.Duration `envconfig:"PLATERUSH_MP_REQUEST_TIMEOUT" default:"10s"`
	RefundTimeout  time.Duration `envconfig:"PLATERUSH_MP_REFUND_TIMEOUT" default:"15s"`
}

// Env returns the normalized gateway environment (sandbox/production).
func (m MercadoPagoConfig) Env() string {
	env := strings.TrimSpace(strings.ToLower(m.Environment))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CheckoutConfig struct {
	DefaultDeliveryFee string `envconfig:"PLATERUSH_CHECKOUT_DEFAULT_DELIVERY_FEE" default:"0.00"`
	Currency           string `envconfig:"PLATERUSH_CHECKOUT_CURRENCY" default:"ARS"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"PLATERUSH_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

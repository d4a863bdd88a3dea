package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "scrapesafe"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Signer       SignerConfig
	Story        StoryConfig
	Pinning      PinningConfig
	Verification VerificationConfig
	LicenseCache LicenseCacheConfig
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
	Env          string `envconfig:"SCRAPESAFE_APP_ENV" required:"true"`
	Port         string `envconfig:"SCRAPESAFE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SCRAPESAFE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SCRAPESAFE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SCRAPESAFE_DB_DSN"`

	Host     string `envconfig:"SCRAPESAFE_DB_HOST"`
	Port     int    `envconfig:"SCRAPESAFE_DB_PORT" default:"5432"`
	User     string `envconfig:"SCRAPESAFE_DB_USER"`
	Password string `envconfig:"SCRAPESAFE_DB_PASSWORD"`
	Name     string `envconfig:"SCRAPESAFE_DB_NAME"`
	SSLMode  string `envconfig:"SCRAPESAFE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SCRAPESAFE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SCRAPESAFE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SCRAPESAFE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SCRAPESAFE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either SCRAPESAFE_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"SCRAPESAFE_REDIS_URL"`
	Address      string        `envconfig:"SCRAPESAFE_REDIS_ADDR"`
	Password     string        `envconfig:"SCRAPESAFE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SCRAPESAFE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SCRAPESAFE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SCRAPESAFE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SCRAPESAFE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SCRAPESAFE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SCRAPESAFE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SignerConfig carries the server signing identity secret. The secret is a
// hex-encoded secp256k1 private key; the process refuses to start without it.
type SignerConfig struct {
	PrivateKeyHex string `envconfig:"SCRAPESAFE_SIGNER_PRIVATE_KEY" required:"true"`
}

type StoryConfig struct {
	BaseURL string        `envconfig:"SCRAPESAFE_STORY_BASE_URL"`
	APIKey  string        `envconfig:"SCRAPESAFE_STORY_API_KEY"`
	SPGNFT  string        `envconfig:"SCRAPESAFE_STORY_SPG_NFT_CONTRACT"`
	Timeout time.Duration `envconfig:"SCRAPESAFE_STORY_TIMEOUT" default:"30s"`
}

type PinningConfig struct {
	BaseURL string        `envconfig:"SCRAPESAFE_PINNING_BASE_URL"`
	Token   string        `envconfig:"SCRAPESAFE_PINNING_TOKEN"`
	Timeout time.Duration `envconfig:"SCRAPESAFE_PINNING_TIMEOUT" default:"30s"`
}

type VerificationConfig struct {
	FetchTimeout time.Duration `envconfig:"SCRAPESAFE_VERIFICATION_FETCH_TIMEOUT" default:"10s"`
}

type LicenseCacheConfig struct {
	TTL           time.Duration `envconfig:"SCRAPESAFE_LICENSE_CACHE_TTL" default:"60s"`
	SweepInterval time.Duration `envconfig:"SCRAPESAFE_LICENSE_CACHE_SWEEP_INTERVAL" default:"5m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SCRAPESAFE_AUTO_MIGRATE" default:"false"`
}

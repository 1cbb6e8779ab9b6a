package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	LockLocal = "local"
	LockRedis = "redis"
)

type DatabaseOptions struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"servicehub"`
}

// DSN returns the pgx connection string.
func (d DatabaseOptions) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

type MongoOptions struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" envDefault:"servicehub"`
}

type RedisOptions struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	JWTSecret   string `env:"JWT_SECRET"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	Database DatabaseOptions
	Mongo    MongoOptions
	Redis    RedisOptions

	LockBackend string        `env:"LOCK_BACKEND" envDefault:"local"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"5s"`
	CacheTTL    time.Duration `env:"CACHE_TTL" envDefault:"60s"`

	AlertsEnabled     bool `env:"ALERTS_ENABLED" envDefault:"false"`
	AlertsConcurrency int  `env:"ALERTS_CONCURRENCY" envDefault:"5"`

	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRPS float64  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	MetricsPath  string   `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.Wrap(err, "load .env")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		return errors.Errorf("STORE_DRIVER must be one of postgres, mongo, memory, got %q", c.StoreDriver)
	}
	switch c.LockBackend {
	case LockLocal, LockRedis:
	default:
		return errors.Errorf("LOCK_BACKEND must be local or redis, got %q", c.LockBackend)
	}
	if c.LockTTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}
	if c.Redis.Addr == "" && (c.LockBackend == LockRedis || c.AlertsEnabled) {
		return errors.New("REDIS_ADDR is required for redis locks and alerts")
	}
	if c.RateLimitRPS < 0 {
		return errors.Errorf("RATE_LIMIT_RPS must be non-negative, got %v", c.RateLimitRPS)
	}
	return nil
}

// RedisEnabled reports whether a Redis server is configured. Without one the
// discovery cache is disabled and locks stay in process.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

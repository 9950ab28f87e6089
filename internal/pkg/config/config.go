package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/crypto/bcrypt"
)

// Store drivers selected by the DATABASE_URL scheme.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	Port              string        `env:"PORT,                default=8080"`
	Env               string        `env:"ENV,                 default=development"`
	LogLevel          string        `env:"LOG_LEVEL,           default=info"`
	JWTSecret         string        `env:"JWT_SECRET,          required"`
	BcryptCost        int           `env:"BCRYPT_COST,         default=10"`
	AdminOnlyAccounts bool          `env:"ACCOUNTS_ADMIN_ONLY, default=false"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,    default=10s"`

	Database DatabaseConfig
	Redis    RedisConfig
}

type DatabaseConfig struct {
	URL     string `env:"DATABASE_URL, required"`
	MongoDB string `env:"MONGO_DB,     default=learning_report"`
}

// RedisConfig enables the account cache when Addr is set.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,  default=0"`
	CacheTTL time.Duration `env:"CACHE_TTL, default=5m"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Development reports whether the service runs in a developer environment.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, err := c.Database.Driver(); err != nil {
		return err
	}
	return nil
}

// Driver derives the store driver from the DATABASE_URL scheme.
func (d DatabaseConfig) Driver() (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", fmt.Errorf("DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return DriverMongo, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	case "memory":
		return DriverMemory, nil
	}
	return "", fmt.Errorf("DATABASE_URL: unsupported scheme %q", u.Scheme)
}

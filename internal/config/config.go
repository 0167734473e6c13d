package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported values for DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all application configuration loaded from the environment.
type Config struct {
	Port        string
	Env         string
	FrontendURL string

	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
}

// DatabaseConfig contains the persistence connection parameters.
type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RabbitMQConfig contains the product event publisher settings.
// Publishing is disabled when URL is empty.
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// Enabled reports whether an event broker is configured.
func (c RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// IsProduction reports whether the application runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from an optional .env file and the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", "4200")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("FRONTEND_URL", "")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "host=127.0.0.1 user=postgres password=postgres dbname=products port=5432 sslmode=disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "product_events")
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	lifetime, err := time.ParseDuration(v.GetString("DATABASE_CONN_MAX_LIFETIME"))
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_CONN_MAX_LIFETIME: %w", err)
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Env:         v.GetString("APP_ENV"),
		FrontendURL: strings.TrimSuffix(strings.TrimSpace(v.GetString("FRONTEND_URL")), "/"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:             v.GetString("DATABASE_URL"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: lifetime,
		},
		RabbitMQ: RabbitMQConfig{
			URL:   v.GetString("RABBITMQ_URL"),
			Queue: v.GetString("RABBITMQ_QUEUE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}

	if c.FrontendURL != "" {
		u, err := url.Parse(c.FrontendURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("FRONTEND_URL must be an absolute URL, got %q", c.FrontendURL)
		}
		// An origin is scheme://host[:port] only.
		if u.Path != "" || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" || u.User != nil || u.Opaque != "" {
			return fmt.Errorf("FRONTEND_URL must be an origin (scheme://host[:port]), got %q", c.FrontendURL)
		}
	}

	if c.RabbitMQ.Enabled() && c.RabbitMQ.Queue == "" {
		return errors.New("RABBITMQ_QUEUE must not be empty when RABBITMQ_URL is set")
	}
	return nil
}

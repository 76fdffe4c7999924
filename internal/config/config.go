package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration of the API server.
type Config struct {
	App      App
	Database Database
	Auth     Auth
	Kafka    Kafka
}

type App struct {
	Env             string        `envconfig:"APP_ENV" default:"development"`
	Port            string        `envconfig:"APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

type Database struct {
	URL             string        `envconfig:"DATABASE_URL" required:"true"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type Auth struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type Kafka struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"`
	OrderTopic string   `envconfig:"KAFKA_ORDER_TOPIC" default:"order-events"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Kafka.Brokers = trimAll(cfg.Kafka.Brokers)
	return &cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.App.Port) == "" {
		errs = append(errs, errors.New("APP_PORT is empty"))
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	if c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("DB_MAX_IDLE_CONNS must not be negative"))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is empty"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.App.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Address is the listen address for the HTTP server.
func (a App) Address() string {
	return ":" + strings.TrimPrefix(a.Port, ":")
}

// IsProduction reports whether the server runs with production defaults.
func (a App) IsProduction() bool {
	env := strings.ToLower(a.Env)
	return env == "production" || env == "prod"
}

// Enabled reports whether order events should be published.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Package config loads server configuration from an optional YAML file,
// a .env file and HT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/evcraddock/hometrace/internal/email"
	"github.com/evcraddock/hometrace/internal/logging"
)

// Config is the root server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	SMTP         email.SMTPConfig   `yaml:"smtp"`
	MLS          MLSConfig          `yaml:"mls"`
	Log          LogConfig          `yaml:"log"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"HT_PORT"             env-default:"8080"`
	BaseURL         string        `yaml:"base_url"         env:"HT_BASE_URL"         env-default:"http://localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HT_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HT_WRITE_TIMEOUT"    env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HT_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// DatabaseConfig holds the SQLite location. Empty means the default path.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"HT_DB"`
}

// AuthConfig holds login settings.
type AuthConfig struct {
	AdminEmail string `yaml:"admin_email" env:"HT_ADMIN_EMAIL"`
	DevMode    bool   `yaml:"dev_mode"    env:"HT_DEV_MODE"    env-default:"false"`
}

// MLSConfig holds the listing lookup credentials. Without a key houses
// can only be added manually.
type MLSConfig struct {
	RapidAPIKey string `yaml:"rapidapi_key" env:"HT_RAPIDAPI_KEY"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"HT_LOG_LEVEL" env-default:"info"`
}

// HousekeepingConfig schedules the expired session and token purge.
type HousekeepingConfig struct {
	Schedule string `yaml:"schedule" env:"HT_HOUSEKEEPING_SCHEDULE" env-default:"@every 1h"`
}

// Load reads configuration. Priority: ENV > .env > YAML > defaults.
// The YAML path comes from HT_CONFIG; when unset no file is read.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("HT_CONFIG"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that the loaders cannot.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("base URL %q must be absolute", c.Server.BaseURL))
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	if c.Auth.AdminEmail != "" && !strings.Contains(c.Auth.AdminEmail, "@") {
		errs = append(errs, fmt.Errorf("admin email %q is not an email address", c.Auth.AdminEmail))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.Housekeeping.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("housekeeping schedule %q: %w", c.Housekeeping.Schedule, err))
	}

	return errors.Join(errs...)
}

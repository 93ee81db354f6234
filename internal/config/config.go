// Package config handles loading and parsing application configuration.
// It supports two sources for the config file (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// A .env file in the working directory, when present, is loaded into the
// environment first, so every env:"..." override below can live there.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultLockRetries applies when the config file has no storage.lock_retries.
const DefaultLockRetries = 3

// Storage drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file and can be overridden by the
// corresponding environment variable.
type Config struct {
	// Env controls log format and verbosity: "dev", "staging" or "prod".
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	HTTPServer `yaml:"http_server"`

	Storage Storage `yaml:"storage"`
	Notify  Notify  `yaml:"notify"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr         string        `yaml:"address" env:"HTTP_SERVER_ADDR" env-required:"true"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES" env-default:"1048576"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"20s"`
}

// Storage selects and tunes the archive backend.
type Storage struct {
	// Driver is "json" (one JSON array file) or "sqlite".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"json"`
	// Path is the archive file (or database file for sqlite).
	Path string `yaml:"path" env:"STORAGE_PATH" env-required:"true"`
	// LockRetries and LockBackoff bound how long an append waits for the
	// lock: LockRetries × LockBackoff. 0 retries means a single attempt.
	//
	// No env-default here: cleanenv applies defaults to any zero field, which
	// would turn an explicit "lock_retries: 0" back into 3. Load seeds the
	// default before the file is read instead.
	LockRetries int           `yaml:"lock_retries" env:"STORAGE_LOCK_RETRIES"`
	LockBackoff time.Duration `yaml:"lock_backoff" env:"STORAGE_LOCK_BACKOFF" env-default:"100ms"`
}

// LockWait is the longest an archive operation waits for the lock.
func (s Storage) LockWait() time.Duration {
	return time.Duration(s.LockRetries) * s.LockBackoff
}

// Notify configures the owner notification email.
type Notify struct {
	// Enabled switches from logging notifications to sending them.
	Enabled      bool          `yaml:"enabled" env:"EMAIL_ENABLED"`
	OwnerAddress string        `yaml:"owner_address" env:"EMAIL_OWNER"`
	FromAddress  string        `yaml:"from_address" env:"EMAIL_FROM" env-default:"noreply@localhost"`
	FromName     string        `yaml:"from_name" env:"EMAIL_FROM_NAME" env-default:"Contact Form"`
	SMTPHost     string        `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int           `yaml:"smtp_port" env:"SMTP_PORT" env-default:"587"`
	Username     string        `yaml:"username" env:"SMTP_USERNAME"`
	Password     string        `yaml:"password" env:"SMTP_PASSWORD"`
	Timeout      time.Duration `yaml:"timeout" env:"EMAIL_TIMEOUT" env-default:"10s"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	cfg := Config{Storage: Storage{LockRetries: DefaultLockRetries}}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad resolves the config path, then loads it, exiting the process on
// any failure. If this function returns, the config is valid.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverJSON, DriverSQLite, c.Storage.Driver)
	}
	if c.Storage.LockRetries < 0 {
		return fmt.Errorf("storage.lock_retries must not be negative")
	}
	if c.HTTPServer.MaxBodyBytes <= 0 {
		return fmt.Errorf("http_server.max_body_bytes must be greater than 0")
	}
	if c.Notify.Enabled {
		if c.Notify.OwnerAddress == "" {
			return fmt.Errorf("notify.owner_address must be set when email is enabled")
		}
		if c.Notify.SMTPHost == "" {
			return fmt.Errorf("notify.smtp_host must be set when email is enabled")
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JaimeStill/pulse/pkg/database"
	"github.com/JaimeStill/pulse/pkg/storage"
	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPulseEnv             = "PULSE_ENV"
	EnvPulseConfigDir       = "PULSE_CONFIG_DIR"
	EnvPulseShutdownTimeout = "PULSE_SHUTDOWN_TIMEOUT"
	EnvPulseVersion         = "PULSE_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PULSE_DB_HOST",
	Port:            "PULSE_DB_PORT",
	Name:            "PULSE_DB_NAME",
	User:            "PULSE_DB_USER",
	Password:        "PULSE_DB_PASSWORD",
	SSLMode:         "PULSE_DB_SSL_MODE",
	MaxOpenConns:    "PULSE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PULSE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PULSE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PULSE_DB_CONN_TIMEOUT",
	QueryTimeout:    "PULSE_DB_QUERY_TIMEOUT",
	RetryAttempts:   "PULSE_DB_RETRY_ATTEMPTS",
	RetryBackoff:    "PULSE_DB_RETRY_BACKOFF",
	RetryMaxBackoff: "PULSE_DB_RETRY_MAX_BACKOFF",
}

var storageEnv = &storage.Env{
	ContainerName:    "PULSE_STORAGE_CONTAINER_NAME",
	ConnectionString: "PULSE_STORAGE_CONNECTION_STRING",
	MaxListSize:      "PULSE_STORAGE_MAX_LIST_SIZE",
}

// Config is the root configuration for the pulse service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Engine          EngineConfig    `toml:"engine"`
	Logging         LoggingConfig   `toml:"logging"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the PULSE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPulseEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. Files are resolved relative to PULSE_CONFIG_DIR
// when set. If no config.toml exists, defaults and environment variables
// provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	base := configPath(BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Engine.Merge(&overlay.Engine)
	c.Logging.Merge(&overlay.Logging)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Engine.Finalize(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPulseShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPulseVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvPulseEnv); env != "" {
		path := configPath(fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func configPath(name string) string {
	if dir := os.Getenv(EnvPulseConfigDir); dir != "" {
		return filepath.Join(dir, name)
	}
	return name
}

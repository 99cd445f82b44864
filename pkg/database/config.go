package database

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/pulse/pkg/retry"
)

// Config holds PostgreSQL connection parameters and the per-query
// timeout and retry budget applied by repositories.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
	QueryTimeout    string `toml:"query_timeout"`
	RetryAttempts   int    `toml:"retry_attempts"`
	RetryBackoff    string `toml:"retry_backoff"`
	RetryMaxBackoff string `toml:"retry_max_backoff"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
	QueryTimeout    string
	RetryAttempts   string
	RetryBackoff    string
	RetryMaxBackoff string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// QueryTimeoutDuration returns QueryTimeout as a time.Duration.
func (c *Config) QueryTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.QueryTimeout)
	return d
}

// RetryPolicy builds the backoff policy repositories use for transient failures.
func (c *Config) RetryPolicy() retry.Policy {
	initial, _ := time.ParseDuration(c.RetryBackoff)
	ceiling, _ := time.ParseDuration(c.RetryMaxBackoff)
	return retry.Policy{
		MaxAttempts:  c.RetryAttempts,
		InitialDelay: initial,
		MaxDelay:     ceiling,
		Multiplier:   2,
	}
}

// Dsn returns a PostgreSQL connection string.
func (c *Config) Dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode,
	)
}

// URL returns the connection parameters as a postgres:// URL, the form
// expected by migration tooling.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	mergeString(&c.Host, overlay.Host)
	mergeString(&c.Name, overlay.Name)
	mergeString(&c.User, overlay.User)
	mergeString(&c.Password, overlay.Password)
	mergeString(&c.SSLMode, overlay.SSLMode)
	mergeString(&c.ConnMaxLifetime, overlay.ConnMaxLifetime)
	mergeString(&c.ConnTimeout, overlay.ConnTimeout)
	mergeString(&c.QueryTimeout, overlay.QueryTimeout)
	mergeString(&c.RetryBackoff, overlay.RetryBackoff)
	mergeString(&c.RetryMaxBackoff, overlay.RetryMaxBackoff)
	mergeInt(&c.Port, overlay.Port)
	mergeInt(&c.MaxOpenConns, overlay.MaxOpenConns)
	mergeInt(&c.MaxIdleConns, overlay.MaxIdleConns)
	mergeInt(&c.RetryAttempts, overlay.RetryAttempts)
}

func (c *Config) loadDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "15m"
	}
	if c.ConnTimeout == "" {
		c.ConnTimeout = "5s"
	}
	if c.QueryTimeout == "" {
		c.QueryTimeout = "5s"
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff == "" {
		c.RetryBackoff = "100ms"
	}
	if c.RetryMaxBackoff == "" {
		c.RetryMaxBackoff = "2s"
	}
}

func (c *Config) loadEnv(env *Env) {
	envString(env.Host, &c.Host)
	envInt(env.Port, &c.Port)
	envString(env.Name, &c.Name)
	envString(env.User, &c.User)
	envString(env.Password, &c.Password)
	envString(env.SSLMode, &c.SSLMode)
	envInt(env.MaxOpenConns, &c.MaxOpenConns)
	envInt(env.MaxIdleConns, &c.MaxIdleConns)
	envString(env.ConnMaxLifetime, &c.ConnMaxLifetime)
	envString(env.ConnTimeout, &c.ConnTimeout)
	envString(env.QueryTimeout, &c.QueryTimeout)
	envInt(env.RetryAttempts, &c.RetryAttempts)
	envString(env.RetryBackoff, &c.RetryBackoff)
	envString(env.RetryMaxBackoff, &c.RetryMaxBackoff)
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.User == "" {
		return fmt.Errorf("user required")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}

	durations := map[string]string{
		"conn_max_lifetime": c.ConnMaxLifetime,
		"conn_timeout":      c.ConnTimeout,
		"query_timeout":     c.QueryTimeout,
		"retry_backoff":     c.RetryBackoff,
		"retry_max_backoff": c.RetryMaxBackoff,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func envString(key string, target *string) {
	if key == "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if key == "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func mergeString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func mergeInt(target *int, value int) {
	if value != 0 {
		*target = value
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/pulse/pkg/retry"
)

const (
	EnvEngineConflictAttempts    = "PULSE_ENGINE_CONFLICT_ATTEMPTS"
	EnvEngineConflictBackoff     = "PULSE_ENGINE_CONFLICT_BACKOFF"
	EnvEngineConflictMaxBackoff  = "PULSE_ENGINE_CONFLICT_MAX_BACKOFF"
	EnvEngineFrequencyWindow     = "PULSE_ENGINE_FREQUENCY_WINDOW"
	EnvEngineFrequencyWorkers    = "PULSE_ENGINE_FREQUENCY_WORKERS"
	EnvEngineReconcileInterval   = "PULSE_ENGINE_RECONCILE_INTERVAL"
	EnvEnginePendingInterval     = "PULSE_ENGINE_PENDING_INTERVAL"
	EnvEngineReconcileWorkers    = "PULSE_ENGINE_RECONCILE_WORKERS"
	EnvEngineReconcileRate       = "PULSE_ENGINE_RECONCILE_RATE"
	EnvEngineDriftTolerance      = "PULSE_ENGINE_DRIFT_TOLERANCE"
	EnvEngineDriftAlertThreshold = "PULSE_ENGINE_DRIFT_ALERT_THRESHOLD"
	EnvEngineDefaultTermLimit    = "PULSE_ENGINE_DEFAULT_TERM_LIMIT"
	EnvEngineMaxTermLimit        = "PULSE_ENGINE_MAX_TERM_LIMIT"
)

// EngineConfig tunes the aggregation pipeline: cluster conflict retries,
// frequency batching, reconciliation pacing, and ranking limits.
type EngineConfig struct {
	ConflictAttempts    int     `toml:"conflict_attempts"`
	ConflictBackoff     string  `toml:"conflict_backoff"`
	ConflictMaxBackoff  string  `toml:"conflict_max_backoff"`
	FrequencyWindow     string  `toml:"frequency_window"`
	FrequencyWorkers    int     `toml:"frequency_workers"`
	ReconcileInterval   string  `toml:"reconcile_interval"`
	PendingInterval     string  `toml:"pending_interval"`
	ReconcileWorkers    int     `toml:"reconcile_workers"`
	ReconcileRate       float64 `toml:"reconcile_rate"`
	DriftTolerance      float64 `toml:"drift_tolerance"`
	DriftAlertThreshold int     `toml:"drift_alert_threshold"`
	DefaultTermLimit    int     `toml:"default_term_limit"`
	MaxTermLimit        int     `toml:"max_term_limit"`
}

// ConflictPolicy returns the backoff policy for cluster compare-and-swap conflicts.
func (c *EngineConfig) ConflictPolicy() retry.Policy {
	initial, _ := time.ParseDuration(c.ConflictBackoff)
	ceiling, _ := time.ParseDuration(c.ConflictMaxBackoff)
	return retry.Policy{
		MaxAttempts:  c.ConflictAttempts,
		InitialDelay: initial,
		MaxDelay:     ceiling,
		Multiplier:   2,
	}
}

// FrequencyWindowDuration returns FrequencyWindow as a time.Duration.
func (c *EngineConfig) FrequencyWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.FrequencyWindow)
	return d
}

// ReconcileIntervalDuration returns ReconcileInterval as a time.Duration.
func (c *EngineConfig) ReconcileIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReconcileInterval)
	return d
}

// PendingIntervalDuration returns PendingInterval as a time.Duration.
func (c *EngineConfig) PendingIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PendingInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.ConflictAttempts != 0 {
		c.ConflictAttempts = overlay.ConflictAttempts
	}
	if overlay.ConflictBackoff != "" {
		c.ConflictBackoff = overlay.ConflictBackoff
	}
	if overlay.ConflictMaxBackoff != "" {
		c.ConflictMaxBackoff = overlay.ConflictMaxBackoff
	}
	if overlay.FrequencyWindow != "" {
		c.FrequencyWindow = overlay.FrequencyWindow
	}
	if overlay.FrequencyWorkers != 0 {
		c.FrequencyWorkers = overlay.FrequencyWorkers
	}
	if overlay.ReconcileInterval != "" {
		c.ReconcileInterval = overlay.ReconcileInterval
	}
	if overlay.PendingInterval != "" {
		c.PendingInterval = overlay.PendingInterval
	}
	if overlay.ReconcileWorkers != 0 {
		c.ReconcileWorkers = overlay.ReconcileWorkers
	}
	if overlay.ReconcileRate != 0 {
		c.ReconcileRate = overlay.ReconcileRate
	}
	if overlay.DriftTolerance != 0 {
		c.DriftTolerance = overlay.DriftTolerance
	}
	if overlay.DriftAlertThreshold != 0 {
		c.DriftAlertThreshold = overlay.DriftAlertThreshold
	}
	if overlay.DefaultTermLimit != 0 {
		c.DefaultTermLimit = overlay.DefaultTermLimit
	}
	if overlay.MaxTermLimit != 0 {
		c.MaxTermLimit = overlay.MaxTermLimit
	}
}

func (c *EngineConfig) loadDefaults() {
	if c.ConflictAttempts == 0 {
		c.ConflictAttempts = 5
	}
	if c.ConflictBackoff == "" {
		c.ConflictBackoff = "10ms"
	}
	if c.ConflictMaxBackoff == "" {
		c.ConflictMaxBackoff = "250ms"
	}
	if c.FrequencyWindow == "" {
		c.FrequencyWindow = "30s"
	}
	if c.FrequencyWorkers == 0 {
		c.FrequencyWorkers = 4
	}
	if c.ReconcileInterval == "" {
		c.ReconcileInterval = "10m"
	}
	if c.PendingInterval == "" {
		c.PendingInterval = "30s"
	}
	if c.ReconcileWorkers == 0 {
		c.ReconcileWorkers = 4
	}
	if c.ReconcileRate == 0 {
		c.ReconcileRate = 50
	}
	if c.DriftTolerance == 0 {
		c.DriftTolerance = 1e-6
	}
	if c.DriftAlertThreshold == 0 {
		c.DriftAlertThreshold = 10
	}
	if c.DefaultTermLimit == 0 {
		c.DefaultTermLimit = 20
	}
	if c.MaxTermLimit == 0 {
		c.MaxTermLimit = 500
	}
}

func (c *EngineConfig) loadEnv() {
	envInt(EnvEngineConflictAttempts, &c.ConflictAttempts)
	envString(EnvEngineConflictBackoff, &c.ConflictBackoff)
	envString(EnvEngineConflictMaxBackoff, &c.ConflictMaxBackoff)
	envString(EnvEngineFrequencyWindow, &c.FrequencyWindow)
	envInt(EnvEngineFrequencyWorkers, &c.FrequencyWorkers)
	envString(EnvEngineReconcileInterval, &c.ReconcileInterval)
	envString(EnvEnginePendingInterval, &c.PendingInterval)
	envInt(EnvEngineReconcileWorkers, &c.ReconcileWorkers)
	envFloat(EnvEngineReconcileRate, &c.ReconcileRate)
	envFloat(EnvEngineDriftTolerance, &c.DriftTolerance)
	envInt(EnvEngineDriftAlertThreshold, &c.DriftAlertThreshold)
	envInt(EnvEngineDefaultTermLimit, &c.DefaultTermLimit)
	envInt(EnvEngineMaxTermLimit, &c.MaxTermLimit)
}

func (c *EngineConfig) validate() error {
	if c.ConflictAttempts < 1 {
		return fmt.Errorf("conflict_attempts must be at least 1")
	}
	if c.FrequencyWorkers < 1 || c.ReconcileWorkers < 1 {
		return fmt.Errorf("worker counts must be positive")
	}
	if c.ReconcileRate <= 0 {
		return fmt.Errorf("reconcile_rate must be positive")
	}
	if c.DriftTolerance < 0 {
		return fmt.Errorf("drift_tolerance cannot be negative")
	}
	if c.DefaultTermLimit < 1 || c.DefaultTermLimit > c.MaxTermLimit {
		return fmt.Errorf("default_term_limit must be between 1 and max_term_limit")
	}

	durations := []struct{ name, value string }{
		{"conflict_backoff", c.ConflictBackoff},
		{"conflict_max_backoff", c.ConflictMaxBackoff},
		{"frequency_window", c.FrequencyWindow},
		{"reconcile_interval", c.ReconcileInterval},
		{"pending_interval", c.PendingInterval},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	return nil
}

func envString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

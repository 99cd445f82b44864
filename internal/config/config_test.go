package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/pulse/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080

[database]
host = "localhost"
name = "pulse"
user = "pulse"
password = "pulse"
query_timeout = "3s"
retry_attempts = 4

[storage]
container_name = "snapshots"
connection_string = "DefaultEndpointsProtocol=http;AccountName=pulsestore;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/pulsestore;"

[api]
base_path = "/api"
max_body_size = "512KB"

[api.pagination]
default_page_size = 25
max_page_size = 50

[engine]
conflict_attempts = 7
frequency_window = "5s"
reconcile_interval = "2m"
drift_tolerance = 0.001

[logging]
level = "debug"
format = "json"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[engine]
reconcile_rate = 10.0
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644))
}

func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvPulseConfigDir, dir)
	return dir
}

func TestLoad(t *testing.T) {
	dir := configDir(t)
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "pulse", cfg.Database.Name)
	assert.Equal(t, 3*time.Second, cfg.Database.QueryTimeoutDuration())
	assert.Equal(t, 4, cfg.Database.RetryPolicy().MaxAttempts)
	assert.Equal(t, "snapshots", cfg.Storage.ContainerName)
	assert.Equal(t, 25, cfg.API.Pagination.DefaultPageSize)
	assert.Equal(t, int64(512*1024), cfg.API.MaxBodySizeBytes())
	assert.Equal(t, 7, cfg.Engine.ConflictPolicy().MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Engine.FrequencyWindowDuration())
	assert.Equal(t, 2*time.Minute, cfg.Engine.ReconcileIntervalDuration())
	assert.InDelta(t, 0.001, cfg.Engine.DriftTolerance, 1e-12)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "Pulse API", cfg.API.OpenAPI.Title)
}

func TestLoadWithOverlay(t *testing.T) {
	dir := configDir(t)
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	t.Setenv(config.EnvPulseEnv, "staging")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "prodhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "base value kept")
	assert.Equal(t, 7, cfg.Engine.ConflictAttempts, "base value kept")
	assert.InDelta(t, 10.0, cfg.Engine.ReconcileRate, 1e-12)
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := configDir(t)
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)

	t.Setenv(config.EnvPulseVersion, "2.0.0")
	t.Setenv(config.EnvServerPort, "3000")
	t.Setenv(config.EnvEngineConflictAttempts, "9")
	t.Setenv(config.EnvEngineDriftTolerance, "0.5")
	t.Setenv(config.EnvLoggingLevel, "WARN")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", cfg.Version)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 9, cfg.Engine.ConflictAttempts)
	assert.InDelta(t, 0.5, cfg.Engine.DriftTolerance, 1e-12)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadNoConfigFile(t *testing.T) {
	configDir(t)
	t.Setenv("PULSE_DB_NAME", "testdb")
	t.Setenv("PULSE_DB_USER", "testuser")
	t.Setenv("PULSE_STORAGE_CONNECTION_STRING", "conn")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "testdb", cfg.Database.Name)
	assert.Equal(t, 5, cfg.Engine.ConflictAttempts)
	assert.Equal(t, 30*time.Second, cfg.Engine.FrequencyWindowDuration())
	assert.Equal(t, 20, cfg.Engine.DefaultTermLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "local", cfg.Env())
}

func TestLoadInvalidConfig(t *testing.T) {
	dir := configDir(t)
	writeConfig(t, dir, config.BaseConfigFile, `[server`)

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadMissingDatabase(t *testing.T) {
	configDir(t)
	t.Setenv("PULSE_STORAGE_CONNECTION_STRING", "conn")

	_, err := config.Load()
	require.ErrorContains(t, err, "database")
}

func TestEngineValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EngineConfig
	}{
		{"zero attempts after env", config.EngineConfig{ConflictAttempts: -1}},
		{"bad window", config.EngineConfig{FrequencyWindow: "often"}},
		{"negative tolerance", config.EngineConfig{DriftTolerance: -0.1}},
		{"negative rate", config.EngineConfig{ReconcileRate: -1}},
		{"default above max", config.EngineConfig{DefaultTermLimit: 50, MaxTermLimit: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.cfg.Finalize())
		})
	}
}

func TestEngineMerge(t *testing.T) {
	base := config.EngineConfig{ConflictAttempts: 3, FrequencyWindow: "10s"}
	base.Merge(&config.EngineConfig{FrequencyWindow: "1m", ReconcileWorkers: 8})

	assert.Equal(t, 3, base.ConflictAttempts)
	assert.Equal(t, "1m", base.FrequencyWindow)
	assert.Equal(t, 8, base.ReconcileWorkers)
}

func TestLoggingValidation(t *testing.T) {
	require.Error(t, (&config.LoggingConfig{Level: "verbose"}).Finalize())
	require.Error(t, (&config.LoggingConfig{Format: "xml"}).Finalize())

	cfg := config.LoggingConfig{Level: "Debug"}
	require.NoError(t, cfg.Finalize())
	assert.Equal(t, "debug", cfg.Level)
	assert.NotNil(t, cfg.NewLogger(os.Stderr))
}

func TestServerValidation(t *testing.T) {
	cfg := config.ServerConfig{Port: 70000}
	require.ErrorContains(t, cfg.Finalize(), "invalid port")

	cfg = config.ServerConfig{ReadTimeout: "soon"}
	require.ErrorContains(t, cfg.Finalize(), "read_timeout")
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := &config.Config{ShutdownTimeout: "45s"}
	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeoutDuration())
}

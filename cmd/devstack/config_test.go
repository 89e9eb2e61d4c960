package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "mathesar", cfg.Project)
	assert.Equal(t, "devstack.yaml", cfg.Manifest)
	assert.Equal(t, "", cfg.Docker.Host)
	assert.Equal(t, "./data/devstack.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "0.0.0.0", cfg.Serve.Host)
	assert.Equal(t, 8090, cfg.Serve.Port)
	assert.Equal(t, 30*time.Second, cfg.Serve.ReadTimeout)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
project: "myapp"
manifest: "/srv/myapp/devstack.yaml"

docker:
  host: "unix:///run/user/1000/docker.sock"

database:
  dsn: "/tmp/test.db"

log:
  level: "debug"
  format: "json"

serve:
  host: "127.0.0.1"
  port: 9000
  shutdown_timeout: 15s
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "myapp", cfg.Project)
	assert.Equal(t, "/srv/myapp/devstack.yaml", cfg.Manifest)
	assert.Equal(t, "unix:///run/user/1000/docker.sock", cfg.Docker.Host)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1", cfg.Serve.Host)
	assert.Equal(t, 9000, cfg.Serve.Port)
	assert.Equal(t, 15*time.Second, cfg.Serve.ShutdownTimeout)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("DEVSTACK_PROJECT", "override")
	t.Setenv("DEVSTACK_DOCKER_HOST", "tcp://localhost:2375")
	t.Setenv("DEVSTACK_DATABASE_DSN", "/custom/path.db")
	t.Setenv("DEVSTACK_LOG_LEVEL", "warn")
	t.Setenv("DEVSTACK_SERVE_PORT", "3000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Project)
	assert.Equal(t, "tcp://localhost:2375", cfg.Docker.Host)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Serve.Port)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mathesar", cfg.Project)
}

func TestLoadConfig_InvalidFileFails(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("project: [unclosed"), 0644))

	_, err := LoadConfig(tmpFile)
	require.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_LevelsAndFormats(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		cfg := &Config{Log: LogConfig{Level: level, Format: "text"}}
		assert.NotNil(t, SetupLogger(cfg))
	}

	cfg := &Config{Log: LogConfig{Level: "info", Format: "json"}}
	assert.NotNil(t, SetupLogger(cfg))
}

// =============================================================================
// Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"DEVSTACK_PROJECT",
		"DEVSTACK_MANIFEST",
		"DEVSTACK_DOCKER_HOST",
		"DEVSTACK_DATABASE_DSN",
		"DEVSTACK_LOG_LEVEL",
		"DEVSTACK_LOG_FORMAT",
		"DEVSTACK_SERVE_HOST",
		"DEVSTACK_SERVE_PORT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

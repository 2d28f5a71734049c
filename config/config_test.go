package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// GIVEN: No config file and no environment overrides
	// WHEN: Loading
	cfg, err := Load()

	// THEN: Defaults apply
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "commodity.db", cfg.Database.Path)
	assert.True(t, cfg.Database.SeedOnStart)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 5*time.Second, cfg.Admission.QueryTimeout)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("QUERY_TIMEOUT", "2s")
	t.Setenv("SEED_ON_START", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.TTL)
	assert.Equal(t, 2*time.Second, cfg.Admission.QueryTimeout)
	assert.False(t, cfg.Database.SeedOnStart)
}

func TestLoadFile(t *testing.T) {
	// GIVEN: A YAML file
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
database:
  path: /tmp/test.db
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	// WHEN: It is loaded
	cfg, err := LoadFile(path)

	// THEN: File values win over defaults, unset keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
}

func TestLoadFile_InvalidPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 70000\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger(LogConfig{Level: "warn", Format: format})
		require.NoError(t, err)
		assert.False(t, logger.Core().Enabled(-1), "debug disabled at warn")
	}
}

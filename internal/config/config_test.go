package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridforge/skirmish/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, config.DeathPolicyInstant, cfg.Rules.DeathPolicy)
	assert.Equal(t, 5, cfg.Rules.CellSizeFeet)
	assert.Equal(t, 6, cfg.Rules.MaxExhaustion)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_InvalidDeathPolicy(t *testing.T) {
	path := writeConfig(t, "rules:\n  death_policy: heroic\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules.death_policy")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: verbose\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoad_HTTPTransportRequiresPort(t *testing.T) {
	path := writeConfig(t, "server:\n  transport: http\n  port: 0\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_DatabaseValidatedOnlyWhenEnabled(t *testing.T) {
	// An invalid database section must be ignored while database.enabled is false.
	path := writeConfig(t, "database:\n  enabled: false\n  port: -1\n")
	_, err := config.Load(path)
	require.NoError(t, err)

	path = writeConfig(t, "database:\n  enabled: true\n  port: -1\n")
	_, err = config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.port")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := config.DatabaseConfig{
		Host: "db.local", Port: 5432, User: "u", Password: "p", Name: "skirmish", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db.local:5432/skirmish?sslmode=disable", d.DSN())
}

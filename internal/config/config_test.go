package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnvKeys(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, ok := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		if ok {
			t.Cleanup(func() { _ = os.Setenv(k, old) })
		}
	}
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	unsetEnvKeys(t, "PORT", "DB_HOST", "RECIPIENT_OTP_LENGTH", "API_TOKEN_PREFIX")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.NodeEnv)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "lf_admin_sess", cfg.Auth.AdminSessionCookie)
	assert.Equal(t, "lf_recipient_sess", cfg.Auth.RecipientSessionCookie)
	assert.Equal(t, 6, cfg.Auth.RecipientOTPLength)
	assert.Equal(t, "lfk_", cfg.Auth.APITokenPrefix)
	assert.Equal(t, 20, cfg.History.SnapshotInterval)
	assert.Equal(t, 200, cfg.History.MaxChainDepth)
	assert.Equal(t, "system", cfg.System.UserID)
	assert.Equal(t, 10, cfg.Action.Concurrency)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("RECIPIENT_OTP_LENGTH", "8")
	t.Setenv("API_TOKEN_SCOPES_DEFAULT", "core:read, files:read ,bundles:read")
	t.Setenv("PLUGIN_ACTION_CONCURRENCY", "25")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 8, cfg.Auth.RecipientOTPLength)
	assert.Equal(t, 25, cfg.Action.Concurrency)

	_, _, _, _, _, _, _, _, _, _, _, _, _, scopes := cfg.Auth.ToAuthConfigFields()
	assert.Equal(t, []string{"core:read", "files:read", "bundles:read"}, scopes)
}

func TestLoadFromYAMLFile(t *testing.T) {
	unsetEnvKeys(t, "PORT", "STORAGE_DRIVER")

	path := writeTempYAML(t, `
port: 7070
storage:
  driver: filesystem
  base_path: /tmp/latchflow-objects
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "filesystem", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/latchflow-objects", cfg.Storage.BasePath)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	unsetEnvKeys(t, "PORT")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadRejectsInvalidStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "dropbox")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "70000")

	_, err := Load("")
	require.Error(t, err)
}

func TestDatabaseConfigDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, Database: "latchflow",
		User: "lf", Password: "secret", SSLMode: "",
	}
	assert.Equal(t, "postgres://lf:secret@db:5432/latchflow?sslmode=disable", d.DSN())
}

func TestDatabaseConfigToPostgresConfig(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Database: "latchflow", User: "lf", MaxConns: 10}
	pc := d.ToPostgresConfig()
	assert.Equal(t, "db", pc.Host)
	assert.Equal(t, int32(10), pc.MaxConns)
}

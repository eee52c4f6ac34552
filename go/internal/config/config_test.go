package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"EMDRTAP_STORE", "NATS_URL", "EMDRTAP_NATS_BUCKET", "EMDRTAP_PG_DSN",
	"EMDRTAP_WRITE_TIMEOUT_SECONDS", "EMDRTAP_PREFS", "EMDRTAP_PREFS_PATH",
	"PORT", "EMDRTAP_RELAY_ADDR", "EMDRTAP_LOG_LEVEL", "EMDRTAP_LOG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, StoreNATS, cfg.Store.Backend)
	assert.Equal(t, "HostSession", cfg.Store.NATS.Bucket)
	assert.Equal(t, 5*time.Second, cfg.Store.WriteTimeout)
	assert.Equal(t, PrefsTOML, cfg.Prefs.Backend)
	assert.Equal(t, ":8080", cfg.Relay.Addr)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "emdrtap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: postgres
  nats:
    ttl: 2h
  postgres:
    dsn: postgres://file
prefs:
  backend: sqlite
  path: /tmp/prefs.db
log:
  level: debug
`), 0o600))

	t.Setenv("EMDRTAP_PG_DSN", "postgres://env")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Store.NATS.TTL)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Store.NATS.URL)
	assert.Equal(t, "postgres://env", cfg.PostgresDSN())
	assert.Equal(t, PrefsSQLite, cfg.Prefs.Backend)
	assert.Equal(t, ":9090", cfg.Relay.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestPostgresDSNFallsBackToDBEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_NAME", "tap")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Contains(t, cfg.PostgresDSN(), "@pg:5432/tap")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMDRTAP_STORE", "redis")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

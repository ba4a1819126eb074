package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("COMMODEX_ADMIN_ACCOUNT", "root")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.AdminAccount)
	assert.Equal(t, "commodex", cfg.EngineAccount)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Ledger.Driver)
	assert.Equal(t, "commodex.events", cfg.Kafka.Topic)
	assert.Equal(t, 1024, cfg.Kafka.Buffer)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
admin_account: admin
http:
  addr: ":9000"
log:
  level: debug
  format: console
ledger:
  driver: sqlite
  dsn: commodex.db
  seed:
    alice: 1000
kafka:
  brokers: ["localhost:9092"]
`)
	t.Setenv("COMMODEX_HTTP_ADDR", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "admin", cfg.AdminAccount)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, uint64(1000), cfg.Ledger.Seed["alice"])
	assert.True(t, cfg.Kafka.Enabled())
}

func TestLoadValidation(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err, "admin account is required")

	path := writeConfig(t, "admin_account: admin\nledger:\n  driver: postgres\n")
	_, err = Load(path)
	assert.Error(t, err, "postgres needs a dsn")

	path = writeConfig(t, "admin_account: commodex\n")
	_, err = Load(path)
	assert.Error(t, err, "admin and engine accounts must differ")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

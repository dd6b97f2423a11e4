package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "UTC", cfg.App.Timezone)
	assert.Equal(t, 2*time.Minute, cfg.App.StoreTimeout)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Storage.Breaker.FailThreshold)
	assert.Equal(t, []string{"127.0.0.1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10, cfg.RateLimit.Uploads)
	assert.Empty(t, cfg.Admin.PasswordHash)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\nstorage:\n  driver: s3\n"), 0o600))

	t.Setenv("CLIPGATE_APP_TIMEZONE", "Asia/Tehran")
	t.Setenv("CLIPGATE_MYSQL_DSN", "u:p@tcp(db:3306)/x")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "s3", cfg.Storage.Driver)
	assert.Equal(t, "Asia/Tehran", cfg.App.Timezone)
	assert.Equal(t, "u:p@tcp(db:3306)/x", cfg.MySQL.DSN)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLocation(t *testing.T) {
	loc, err := AppConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = AppConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = AppConfig{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}

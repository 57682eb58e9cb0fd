package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"PORT", "CACHE_DB_PATH", "CACHE_TTL_MINUTES", "OFF_BASE_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 20, cfg.Source.PageSize)
	assert.Equal(t, 50, cfg.Source.CategoryLimit)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8080"
source:
  base_url: http://localhost:1234
  request_timeout: 5s
cache:
  ttl: 10m
log:
  level: debug
`), 0644))

	t.Setenv("CACHE_TTL_MINUTES", "90")
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "http://localhost:1234", cfg.Source.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Source.RequestTimeout)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 20, cfg.Source.PageSize)
}

func TestLoad_IgnoresBadTTLEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_TTL_MINUTES", "-3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1440*time.Minute, cfg.Cache.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  page_size: 0\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "page_size")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "explorer.yaml")

	cfg := Default()
	cfg.Capture.Width = 800
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, loaded.Capture.Width)
}

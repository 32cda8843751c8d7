package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://mock-server.free.beeceptor.com", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "native", cfg.Platform)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.StaleTime)
	assert.Equal(t, uint(3), cfg.QueryRetry)
	assert.Empty(t, cfg.RefreshSpec)
	assert.True(t, strings.HasSuffix(cfg.StoragePath, filepath.Join("apikit", "store.db")), cfg.StoragePath)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APIKIT_BASE_URL", "http://localhost:8080")
	t.Setenv("APIKIT_TIMEOUT", "5s")
	t.Setenv("APIKIT_PLATFORM", "web")
	t.Setenv("APIKIT_STORAGE_PATH", "/tmp/kv.db")
	t.Setenv("APIKIT_QUERY_RETRY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "web", cfg.Platform)
	assert.Equal(t, "/tmp/kv.db", cfg.StoragePath)
	assert.Equal(t, uint(0), cfg.QueryRetry)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APIKIT_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("APIKIT_STORAGE_PATH", "/tmp/kv.db")
	// godotenv does not override variables that are already set
	t.Cleanup(func() { os.Unsetenv("APIKIT_LOG_LEVEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseEnvError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APIKIT_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/activepieces/activepieces-sub025/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.BindAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "redis", cfg.Bus)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "dispatch:jobs", cfg.QueueStream)
	assert.Equal(t, "workers", cfg.QueueGroup)
	assert.Equal(t, 30*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DISPATCH_BIND_ADDR", ":9090")
	t.Setenv("DISPATCH_BUS", "nats")
	t.Setenv("DISPATCH_WEBHOOK_TIMEOUT", "5s")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.BindAddr)
	assert.Equal(t, "nats", cfg.Bus)
	assert.Equal(t, 5*time.Second, cfg.WebhookTimeout)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bind_addr: \":7070\"\nbus: memory\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.BindAddr)
	assert.Equal(t, "memory", cfg.Bus)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bind_addr: \":7070\"\n"), 0o600))

	t.Setenv("DISPATCH_BIND_ADDR", ":9999")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.BindAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

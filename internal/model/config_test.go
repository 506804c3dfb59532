package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.Server.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Sync.ReconcileInterval())
	assert.Equal(t, 5*time.Second, cfg.Sync.DedupWindow())
	assert.Equal(t, 30*time.Second, cfg.Sync.ReadStateHorizon())
	assert.Equal(t, 50, cfg.Sync.NotificationCap)
	assert.Equal(t, 5*time.Second, cfg.Alert.OSAlertWindow())
	assert.Equal(t, 6*time.Second, cfg.Alert.ToastLifetime())
	assert.True(t, cfg.Alert.OSAlertsEnabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  base_url: https://api.bookswap.example
  socket_url: wss://ws.bookswap.example
sync:
  reconcile_interval_sec: 60
alert:
  os_alerts_enabled: false
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.bookswap.example", cfg.Server.BaseURL)
	assert.Equal(t, "wss://ws.bookswap.example", cfg.Server.SocketURL)
	assert.Equal(t, 60*time.Second, cfg.Sync.ReconcileInterval())
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Sync.DedupWindow())
	assert.False(t, cfg.Alert.OSAlertsEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	cfg.Server.BaseURL = "https://api.bookswap.example"
	cfg.Sync.NotificationCap = 100

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.bookswap.example", loaded.Server.BaseURL)
	assert.Equal(t, 100, loaded.Sync.NotificationCap)
}

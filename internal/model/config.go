package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the backend endpoints.
type ServerConfig struct {
	// BaseURL is the root URL of the marketplace REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SocketURL is the realtime websocket endpoint. When empty it is
	// derived from BaseURL by swapping the scheme to ws/wss.
	SocketURL string `mapstructure:"socket_url" yaml:"socket_url"`
}

// SyncConfig holds the tunables of the notification synchronization
// engine. The defaults are carried over from production but none of
// them is load-bearing; they are plain configuration.
type SyncConfig struct {
	// ReconcileIntervalSec is how often (in seconds) the reconciler
	// polls the server's unread counts while the app is visible.
	ReconcileIntervalSec int `mapstructure:"reconcile_interval_sec" yaml:"reconcile_interval_sec"`

	// DedupWindowSec is the time proximity (in seconds) within which two
	// same-sender same-body messages are treated as one logical event.
	DedupWindowSec int `mapstructure:"dedup_window_sec" yaml:"dedup_window_sec"`

	// ReadStateHorizonSec is how long (in seconds) a local mark-read
	// suppresses stale server unread snapshots for that conversation.
	ReadStateHorizonSec int `mapstructure:"read_state_horizon_sec" yaml:"read_state_horizon_sec"`

	// NotificationCap bounds the local notification store; oldest
	// records are dropped first.
	NotificationCap int `mapstructure:"notification_cap" yaml:"notification_cap"`
}

// AlertConfig holds side-effect dispatch preferences.
type AlertConfig struct {
	// OSAlertWindowSec is the rolling window (in seconds) allowing at
	// most one OS-level notification across all kinds.
	OSAlertWindowSec int `mapstructure:"os_alert_window_sec" yaml:"os_alert_window_sec"`

	// ToastLifetimeSec is how long an in-app banner stays up before
	// auto-dismissing.
	ToastLifetimeSec int `mapstructure:"toast_lifetime_sec" yaml:"toast_lifetime_sec"`

	// OSAlertsEnabled turns desktop notifications off entirely.
	OSAlertsEnabled bool `mapstructure:"os_alerts_enabled" yaml:"os_alerts_enabled"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	Sync     SyncConfig   `mapstructure:"sync" yaml:"sync"`
	Alert    AlertConfig  `mapstructure:"alert" yaml:"alert"`
	LogLevel string       `mapstructure:"log_level" yaml:"log_level"`
}

// ReconcileInterval returns the polling interval as a duration.
func (c SyncConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSec) * time.Second
}

// DedupWindow returns the dedup proximity window as a duration.
func (c SyncConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowSec) * time.Second
}

// ReadStateHorizon returns the read-state suppression horizon as a duration.
func (c SyncConfig) ReadStateHorizon() time.Duration {
	return time.Duration(c.ReadStateHorizonSec) * time.Second
}

// OSAlertWindow returns the OS notification rate-limit window.
func (c AlertConfig) OSAlertWindow() time.Duration {
	return time.Duration(c.OSAlertWindowSec) * time.Second
}

// ToastLifetime returns the in-app banner lifetime.
func (c AlertConfig) ToastLifetime() time.Duration {
	return time.Duration(c.ToastLifetimeSec) * time.Second
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/bookswap/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "bookswap", "config.yaml")
}

// DefaultDataPath returns the default path of the local cache database.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "bookswap.db")
	}
	return filepath.Join(home, ".local", "share", "bookswap", "bookswap.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL: "http://localhost:3000",
		},
		Sync: SyncConfig{
			ReconcileIntervalSec: 20,
			DedupWindowSec:       5,
			ReadStateHorizonSec:  30,
			NotificationCap:      50,
		},
		Alert: AlertConfig{
			OSAlertWindowSec: 5,
			ToastLifetimeSec: 6,
			OSAlertsEnabled:  true,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("sync.reconcile_interval_sec", 20)
	v.SetDefault("sync.dedup_window_sec", 5)
	v.SetDefault("sync.read_state_horizon_sec", 30)
	v.SetDefault("sync.notification_cap", 50)
	v.SetDefault("alert.os_alert_window_sec", 5)
	v.SetDefault("alert.toast_lifetime_sec", 6)
	v.SetDefault("alert.os_alerts_enabled", true)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("sync", cfg.Sync)
	v.Set("alert", cfg.Alert)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

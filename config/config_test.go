package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yllada/connman-indicator/common"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bus != "system" {
		t.Errorf("Bus = %q, want system", cfg.Bus)
	}
	if cfg.DaemonName != "net.connman" {
		t.Errorf("DaemonName = %q, want net.connman", cfg.DaemonName)
	}
	if cfg.VisibleNetworks != 5 {
		t.Errorf("VisibleNetworks = %d, want 5", cfg.VisibleNetworks)
	}
	if cfg.ConnectTimeout != 120*time.Second {
		t.Errorf("ConnectTimeout = %v, want 120s", cfg.ConnectTimeout)
	}
	if cfg.FailureLinger != 2*time.Second {
		t.Errorf("FailureLinger = %v, want 2s", cfg.FailureLinger)
	}
	if !cfg.ShowNotifications {
		t.Error("ShowNotifications should be true by default")
	}
	if cfg.MetricsAddr != "" {
		t.Error("metrics should be off by default")
	}
	if cfg.SettingsCommand != "connman-gtk" {
		t.Errorf("SettingsCommand = %q, want connman-gtk", cfg.SettingsCommand)
	}
}

func TestLoadFrom_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, common.FileExists(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Bus = "session"
	cfg.VisibleNetworks = 8
	cfg.ConnectTimeout = 45 * time.Second
	cfg.MetricsAddr = "127.0.0.1:9477"

	require.NoError(t, cfg.SaveTo(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connect_timeout: 45s")

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("visible_networks: 3\n"), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.VisibleNetworks)
	assert.Equal(t, common.DaemonBusName, cfg.DaemonName)
	assert.Equal(t, common.ConnectTimeout, cfg.ConnectTimeout)
}

func TestLoadFrom_SettingsCommand(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"custom command", "settings_command: cmst --disable-tray-icon\n", "cmst --disable-tray-icon"},
		{"empty hides the item", "settings_command: \"\"\n", ""},
		{"missing keeps default", "visible_networks: 3\n", "connman-gtk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))

			cfg, err := LoadFrom(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.SettingsCommand)
		})
	}
}

func TestLoadFrom_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFrom_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\n"), 0600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConfigLoad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "unknown bus falls back",
			mutate: func(c *Config) { c.Bus = "carrier-pigeon" },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, "system", c.Bus) },
		},
		{
			name:   "bus is normalized",
			mutate: func(c *Config) { c.Bus = " Session " },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, "session", c.Bus) },
		},
		{
			name:   "zero visible networks",
			mutate: func(c *Config) { c.VisibleNetworks = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 5, c.VisibleNetworks) },
		},
		{
			name:   "negative timeout",
			mutate: func(c *Config) { c.ConnectTimeout = -time.Second },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, 120*time.Second, c.ConnectTimeout) },
		},
		{
			name:   "empty daemon name",
			mutate: func(c *Config) { c.DaemonName = "  " },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, "net.connman", c.DaemonName) },
		},
		{
			name:   "zero linger is allowed",
			mutate: func(c *Config) { c.FailureLinger = 0 },
			check:  func(t *testing.T, c *Config) { assert.Equal(t, time.Duration(0), c.FailureLinger) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.NoError(t, cfg.validate())
			tt.check(t, cfg)
		})
	}
}

func TestEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VisibleNetworks = 7

	engine := cfg.Engine()
	assert.Equal(t, 7, engine.VisibleNetworks)
	assert.Equal(t, cfg.DaemonName, engine.DaemonName)
	assert.Equal(t, cfg.ConnectTimeout, engine.ConnectTimeout)
	assert.Equal(t, cfg.FailureLinger, engine.FailureLinger)
}

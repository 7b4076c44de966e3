// Package config provides configuration management for the ConnMan indicator.
// It handles loading, saving, and validating application settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// Bus selects the message bus the daemon lives on: "system" or "session".
	Bus string `yaml:"bus"`
	// DaemonName is the daemon's well-known bus name.
	DaemonName string `yaml:"daemon_name"`
	// VisibleNetworks is how many wifi networks are listed before "More...".
	VisibleNetworks int `yaml:"visible_networks"`
	// ConnectTimeout bounds connect and disconnect requests.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// FailureLinger is how long a failed passphrase prompt stays open.
	FailureLinger time.Duration `yaml:"failure_linger"`
	// AskpassCommand collects passphrases in tray mode. "%s" is replaced by
	// the prompt title.
	AskpassCommand string `yaml:"askpass_command"`
	// SettingsCommand opens the network settings application from the
	// tray. Empty hides the menu item.
	SettingsCommand string `yaml:"settings_command"`
	// ShowNotifications enables desktop notifications for connection events.
	ShowNotifications bool `yaml:"show_notifications"`
	// MetricsAddr serves Prometheus metrics when set, e.g. "127.0.0.1:9477".
	MetricsAddr string `yaml:"metrics_addr"`
	// LogToFile enables the rotating log file.
	LogToFile bool `yaml:"log_to_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bus:               common.BusSystem,
		DaemonName:        common.DaemonBusName,
		VisibleNetworks:   common.VisibleNetworks,
		ConnectTimeout:    common.ConnectTimeout,
		FailureLinger:     common.FailureLinger,
		AskpassCommand:    "zenity --password --title=%s",
		SettingsCommand:   "connman-gtk",
		ShowNotifications: true,
		MetricsAddr:       "",
		LogToFile:         true,
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from configPath, writing the defaults
// there if the file doesn't exist.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: error opening configuration: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	// Start from defaults so keys missing from the file keep their default.
	config := DefaultConfig()
	if err := decoder.Decode(config); err != nil {
		if errors.Is(err, io.EOF) {
			return config, nil
		}
		return nil, fmt.Errorf("%w: error parsing configuration: %v", common.ErrConfigLoad, err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid configuration: %v", common.ErrConfigLoad, err)
	}

	return config, nil
}

// validate verifies that configuration values are valid, falling back to
// defaults where they are not.
func (c *Config) validate() error {
	defaults := DefaultConfig()

	c.Bus = strings.ToLower(strings.TrimSpace(c.Bus))
	if c.Bus != common.BusSystem && c.Bus != common.BusSession {
		c.Bus = defaults.Bus
	}
	if strings.TrimSpace(c.DaemonName) == "" {
		c.DaemonName = defaults.DaemonName
	}
	if c.VisibleNetworks < 1 {
		c.VisibleNetworks = defaults.VisibleNetworks
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
	if c.FailureLinger < 0 {
		c.FailureLinger = defaults.FailureLinger
	}
	return nil
}

// Engine returns the engine settings held by the configuration.
func (c *Config) Engine() connman.Config {
	return connman.Config{
		DaemonName:      c.DaemonName,
		VisibleNetworks: c.VisibleNetworks,
		ConnectTimeout:  c.ConnectTimeout,
		FailureLinger:   c.FailureLinger,
	}
}

// Save saves the configuration to the default file.
func (c *Config) Save() error {
	configPath, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to configPath.
func (c *Config) SaveTo(configPath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: error saving configuration: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}

/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wntrblm/gemsettings/pkg/logging"
	"github.com/wntrblm/gemsettings/pkg/settings"
)

// Config represents the gemsettings configuration
type Config struct {
	NVM       NVM       `yaml:"nvm"`
	Snapshots Snapshots `yaml:"snapshots"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// NVM describes the flash image holding the settings region
type NVM struct {
	ImagePath     string        `yaml:"image_path"`
	Size          int           `yaml:"size"`
	BaseAddress   uint32        `yaml:"base_address"`
	FsyncInterval time.Duration `yaml:"fsync_interval"`
}

// Snapshots configures the backup history
type Snapshots struct {
	Dir string `yaml:"dir"`
}

// Server contains HTTP API configuration
type Server struct {
	Port   int    `yaml:"port"`
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		NVM: NVM{
			ImagePath:   "./data/nvm.bin",
			Size:        4096,
			BaseAddress: 0,
		},
		Snapshots: Snapshots{
			Dir: "./data/snapshots",
		},
		Server: Server{
			Port:   9300,
			Bind:   "127.0.0.1",
			APIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.NVM.ImagePath == "" {
		return fmt.Errorf("nvm.image_path is required")
	}
	if c.NVM.Size <= 0 {
		return fmt.Errorf("nvm.size must be positive, got %d", c.NVM.Size)
	}
	if int64(c.NVM.BaseAddress)+settings.Size > int64(c.NVM.Size) {
		return fmt.Errorf("settings region at 0x%x does not fit in %d byte image", c.NVM.BaseAddress, c.NVM.Size)
	}
	if c.NVM.FsyncInterval < 0 {
		return fmt.Errorf("nvm.fsync_interval must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// LoadConfig loads configuration from the specified path. Fields missing
// from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.NVM.ImagePath = filepath.Join(dataDir, "nvm.bin")
		config.Snapshots.Dir = filepath.Join(dataDir, "snapshots")
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./gemsettings.yaml"
	}

	return filepath.Join(homeDir, ".config", "gemsettings", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"unshub/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "unshub"
	configFileName = "config.yaml"
)

// DefaultConfigPathOrPanic returns the default configuration directory
// (~/.config/unshub on Linux). It panics when the user config directory
// cannot be determined, which only happens in degenerate environments
// without a home directory.
func DefaultConfigPathOrPanic() string {
	base, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}
	return filepath.Join(base, configDirName)
}

// LoadConfig loads the broker configuration from configPath/config.yaml.
// A missing file is not an error: the defaults are returned so a fresh
// install starts without any setup. Malformed YAML fails loudly.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := DefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
			return applyDerivedDefaults(cfg, configPath), nil
		}
		logging.Error("Config", err, "Error loading config.yaml from %s", configFilePath)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("Config", "Loaded configuration from %s", configFilePath)
	return applyDerivedDefaults(cfg, configPath), nil
}

// applyDerivedDefaults fills in defaults that depend on the config location.
func applyDerivedDefaults(cfg Config, configPath string) Config {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(configPath, "unshub.db")
	}
	return cfg
}

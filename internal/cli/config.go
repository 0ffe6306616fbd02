package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8080"

// CLIConfig is what `ht login` stores under ~/.config/ht/config.yaml.
type CLIConfig struct {
	ServerURL string `yaml:"server_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ht", "config.yaml"), nil
}

// loadConfig reads the CLI config. A missing file is a zero config.
func loadConfig() (CLIConfig, error) {
	var cfg CLIConfig
	path, err := configPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// saveConfig writes the CLI config with owner-only permissions.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// storedConfig loads the config for lookups that fall back to defaults.
func storedConfig() CLIConfig {
	cfg, err := loadConfig()
	if err != nil {
		slog.Warn("ignoring CLI config", "err", err)
	}
	return cfg
}

// getServerURL returns HT_SERVER_URL, the stored server URL or the default.
func getServerURL() string {
	if v := os.Getenv("HT_SERVER_URL"); v != "" {
		return v
	}
	if cfg := storedConfig(); cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

// getAPIKey returns HT_API_KEY or the stored API key.
func getAPIKey() string {
	if v := os.Getenv("HT_API_KEY"); v != "" {
		return v
	}
	return storedConfig().APIKey
}

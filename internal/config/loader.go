package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".teleqwen"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("TELEQWEN_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.teleqwen/env (and fallbacks) first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults.

	// Override with environment variables for each group.
	envconfig.Process("TELEQWEN_PATHS", &cfg.Paths)
	envconfig.Process("TELEQWEN_PROVIDER", &cfg.Provider)
	envconfig.Process("TELEQWEN_ENGINE", &cfg.Engine)
	envconfig.Process("TELEQWEN_MEMORY", &cfg.Memory)
	envconfig.Process("TELEQWEN_CHANNELS_TELEGRAM", &cfg.Channels.Telegram)
	envconfig.Process("TELEQWEN_CHANNELS_SLACK", &cfg.Channels.Slack)
	envconfig.Process("TELEQWEN_GATEWAY", &cfg.Gateway)
	envconfig.Process("TELEQWEN_TOOLS", &cfg.Tools)

	expandPaths(&cfg.Paths)
	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func expandPaths(p *PathsConfig) {
	p.DataDir = expandHome(p.DataDir)
	p.Workspace = expandHome(p.Workspace)
	p.InstallRoot = expandHome(p.InstallRoot)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Package config handles portmeshd's on-disk configuration.
//
// Config is stored at $XDG_CONFIG_HOME/portmesh/config.yaml (defaults to
// ~/.config/portmesh/config.yaml), following the same load-or-empty
// pattern as a kubeconfig-style context file: a missing file is not an
// error, it just means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds everything cmd/portmeshd needs to start a host. Core
// packages (internal/pluginhost, internal/registry, internal/transport,
// internal/persistence) never read this file themselves — they take
// directories and paths as explicit constructor/option arguments.
type Config struct {
	SearchDirs  []string `yaml:"searchDirs,omitempty"`
	CatalogPath string   `yaml:"catalogPath,omitempty"`
	GraphPath   string   `yaml:"graphPath,omitempty"`
	LogLevel    string   `yaml:"logLevel,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/portmesh/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "portmesh", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "portmesh", "config.yaml")
}

// Load reads the config file. If the file does not exist, an empty
// Config is returned, not an error.
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ResolvedGraphPath returns GraphPath, defaulting to "./graph.pm" when
// unset.
func (c *Config) ResolvedGraphPath() string {
	if c.GraphPath == "" {
		return "./graph.pm"
	}
	return c.GraphPath
}

// ResolvedCatalogPath returns CatalogPath, defaulting to
// ~/.local/share/portmesh/catalog.db (or ./portmesh-catalog.db if the
// home directory can't be resolved) when unset.
func (c *Config) ResolvedCatalogPath() string {
	if c.CatalogPath != "" {
		return c.CatalogPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "portmesh-catalog.db"
	}
	return filepath.Join(home, ".local", "share", "portmesh", "catalog.db")
}

// ResolvedLogLevel returns LogLevel, defaulting to "info" when unset.
func (c *Config) ResolvedLogLevel() string {
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}

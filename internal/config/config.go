package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/goplus/xarch/internal/env"
)

// Config holds xarch settings.
type Config struct {
	// Workspace holds sources, thin libraries and fat libraries.
	Workspace string `yaml:"workspace"`
	// Formulas are searched in order for <name>.yaml.
	Formulas []string `yaml:"formulas"`
	LogLevel string   `yaml:"log_level"`
	// DeveloperDir selects the Xcode installation xcrun uses.
	DeveloperDir string `yaml:"developer_dir"`
	// Archs are built when the command line names none.
	Archs []string `yaml:"archs"`
}

// DefaultArchs are the architectures built by default.
var DefaultArchs = []string{"armv7", "arm64", "x86_64"}

// Default returns the configuration used when no file exists. It only
// computes paths; nothing is created on disk.
func Default() *Config {
	cfg := &Config{
		LogLevel: "info",
		Formulas: []string{"."},
		Archs:    append([]string(nil), DefaultArchs...),
	}
	if dir, err := env.WorkDir(); err == nil {
		cfg.Workspace = dir
	}
	if dir, err := env.FormulaPath(); err == nil {
		cfg.Formulas = append(cfg.Formulas, dir)
	}
	return cfg
}

// Load reads the config at path, or the default location when path is
// empty. A missing file yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := env.ConfigFile()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Workspace == "" {
		return nil, fmt.Errorf("parsing config: workspace is empty")
	}
	if !filepath.IsAbs(cfg.Workspace) {
		abs, err := filepath.Abs(cfg.Workspace)
		if err != nil {
			return nil, err
		}
		cfg.Workspace = abs
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

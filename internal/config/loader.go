package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Precedence, highest first: project config, global config, defaults.
// Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from the conventional paths:
// ~/.stagehand/config.json and .stagehand/config.json under projectRoot.
func LoadDefault(projectRoot string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".stagehand", "config.json")
	projectPath := filepath.Join(projectRoot, ".stagehand", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile overlays a JSON config file onto base. Unset sections keep
// the base values; a present section replaces its counterpart wholesale.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var overlay struct {
		Safety   *json.RawMessage `json:"safety"`
		Budgets  *json.RawMessage `json:"budgets"`
		Paths    *json.RawMessage `json:"paths"`
		Analyzer *json.RawMessage `json:"analyzer"`
	}
	if err := json.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	apply := func(raw *json.RawMessage, target any) error {
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(*raw, target); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}

	if err := apply(overlay.Safety, &base.Safety); err != nil {
		return err
	}
	if err := apply(overlay.Budgets, &base.Budgets); err != nil {
		return err
	}
	if err := apply(overlay.Paths, &base.Paths); err != nil {
		return err
	}
	return apply(overlay.Analyzer, &base.Analyzer)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hooka/internal/model"

	"gopkg.in/yaml.v3"
)

const (
	defaultEndpoint = "http://localhost:8080/api"
	configFileName  = ".hooka.yaml"
	localDBFileName = ".hooka.db"
)

// cliConfig is the on-disk CLI configuration.
type cliConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Token         string `yaml:"token,omitempty"`
	LocalDB       string `yaml:"local_db,omitempty"`
	UserID        string `yaml:"user_id,omitempty"`
	AdminPassword string `yaml:"admin_password,omitempty"`
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}

// loadConfig reads path. A missing file yields the defaults.
func loadConfig(path string) (*cliConfig, error) {
	cfg := &cliConfig{Endpoint: defaultEndpoint}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	return cfg, nil
}

func saveConfig(path string, cfg *cliConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// readBrief loads a brief from YAML. Keys use the same camelCase names as
// the JSON wire format.
func readBrief(path string) (model.MarketingBrief, error) {
	var brief model.MarketingBrief
	data, err := os.ReadFile(path)
	if err != nil {
		return brief, fmt.Errorf("reading brief: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return brief, fmt.Errorf("parsing brief: %w", err)
	}
	// Round-trip through JSON so the wire tags apply.
	js, err := json.Marshal(raw)
	if err != nil {
		return brief, fmt.Errorf("converting brief: %w", err)
	}
	if err := json.Unmarshal(js, &brief); err != nil {
		return brief, fmt.Errorf("decoding brief: %w", err)
	}
	return brief, nil
}

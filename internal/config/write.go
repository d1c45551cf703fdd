// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Marshal renders cfg as YAML.
func Marshal(cfg AppConfig) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// WriteFile atomically writes cfg to path. It refuses to replace an
// existing file unless overwrite is set.
func WriteFile(path string, cfg AppConfig, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ParseFile strictly parses a YAML file over the defaults without applying
// the environment or validation.
func ParseFile(path string) (AppConfig, error) {
	cfg := Defaults()
	l := NewLoader(path, "")
	if err := l.mergeFile(&cfg, path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

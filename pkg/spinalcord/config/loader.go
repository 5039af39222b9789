package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile reads a YAML (.yaml, .yml) or JSON (.json) settings file.
// ${VAR} references in the file are replaced from the environment before
// parsing, so secrets such as the reset token can stay out of the file.
func FromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(filepath.Ext(path), []byte(os.ExpandEnv(string(raw))))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml" or
// ".json"; the leading dot is optional).
func Parse(ext string, data []byte) (Config, error) {
	var m map[string]any
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, &m); err != nil {
			return Config{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return New(m), nil
}

// Find returns the first candidate path that names a regular file. The
// boolean is false when none exists.
func Find(candidates ...string) (string, bool) {
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// FromMap wraps an already-decoded settings map, such as
// viper.AllSettings().
func FromMap(m map[string]any) Config {
	return New(m)
}

// Package config loads the Addon Configuration. The canonical wire
// format is JSON (spec.md §6); a YAML variant is accepted as an
// additive convenience for hand-edited fixture/config files and is
// never the format written back out.
package config

import (
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultAutoThreshold is the candidate-count ceiling used when a
// config file doesn't set auto_threshold.
const DefaultAutoThreshold = 3

// Addon holds the Write & Enforcement tuning options recognized from
// an addon configuration file.
type Addon struct {
	AutoThreshold   int      `json:"auto_threshold" yaml:"auto_threshold"`
	DryRun          bool     `json:"dry_run" yaml:"dry_run"`
	LogPath         string   `json:"log_path" yaml:"log_path"` // consumed by patch.Session.SetLogPath
	EnforceInterval float64  `json:"enforce_interval" yaml:"enforce_interval"`
	PatchValue      *float64 `json:"patch_value,omitempty" yaml:"patch_value,omitempty"`
	PatchType       string   `json:"patch_type,omitempty" yaml:"patch_type,omitempty"`
}

// Default returns the addon config's built-in defaults, applied
// before any file is merged on top.
func Default() Addon {
	return Addon{
		AutoThreshold: DefaultAutoThreshold,
		DryRun:        true,
		LogPath:       "addon_patch_log.txt",
	}
}

// Load reads an addon configuration file, detecting JSON vs YAML by
// extension (".yaml"/".yml" for YAML, anything else as JSON). A
// missing path returns Default() unchanged, matching the original
// tool's silent fallback to built-in defaults.
func Load(path string) (Addon, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func isYAMLPath(path string) bool {
	n := len(path)
	return (n >= 5 && path[n-5:] == ".yaml") || (n >= 4 && path[n-4:] == ".yml")
}

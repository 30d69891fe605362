// Package config loads the harness configuration from harness.yaml with
// E2E_* environment overrides, and turns it into scenario driver input.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
)

// Load reads the harness file at path over the defaults, applies environment
// overrides and validates the result. An empty path reads harness.yaml from
// the working directory and falls back to defaults when it does not exist.
func Load(path string) (*HarnessConfig, error) {
	explicit := path != ""
	if !explicit {
		path = constants.ConfigFile
	}

	cfg := DefaultHarnessConfig()

	//nolint:gosec // G304: path is chosen by the operator.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Unset keys keep their defaults; a scenarios list replaces the derived one.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &harnesserrors.ConfigurationError{Path: path, Reason: "invalid YAML", Err: err}
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, &harnesserrors.ConfigurationError{Path: path, Reason: "cannot read config file", Err: err}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, &harnesserrors.ConfigurationError{Reason: "environment override", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *HarnessConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		//nolint:gosec // G301: config directory is shared with the build output.
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	//nolint:gosec // G306: the harness file holds no secrets.
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

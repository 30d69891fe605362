package config

import (
	"fmt"

	harnesserrors "github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/errors"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/scenario"
)

func invalid(field, reason string, err error) error {
	return &harnesserrors.ConfigurationError{Path: field, Reason: reason, Err: err}
}

// Profile resolves the platform profile named by Platform and Runtime.
func (c *HarnessConfig) Profile() (platform.Profile, error) {
	family, err := platform.ParseFamily(c.Platform)
	if err != nil {
		return platform.Profile{}, invalid("platform", "unknown platform", err)
	}
	runtime, err := platform.ParseRuntimeClass(c.Runtime)
	if err != nil {
		return platform.Profile{}, invalid("runtime", "unknown runtime class", err)
	}
	return platform.Lookup(family, runtime)
}

// Validate checks the whole configuration. Every scenario mode is checked
// against the platform profile so an unsupported combination fails here,
// before anything is launched.
func (c *HarnessConfig) Validate() error {
	if c.Version != "" && c.Version != SchemaVersion {
		return invalid("version", fmt.Sprintf("unsupported schema version %q", c.Version), nil)
	}
	if c.OutputRoot == "" {
		return invalid("output_root", "must not be empty", nil)
	}
	if c.AppName == "" {
		return invalid("app_name", "must not be empty", nil)
	}
	if c.Timeout <= 0 {
		return invalid("timeout", "must be positive", nil)
	}
	if c.DrainWindow < 0 {
		return invalid("drain_window", "must not be negative", nil)
	}
	switch c.Report {
	case scenario.FormatText, scenario.FormatJSON:
	default:
		return invalid("report", fmt.Sprintf("unknown format %q (want text or json)", c.Report), nil)
	}
	if err := c.Collector.Validate(); err != nil {
		return invalid("collector.protocol", "invalid collector settings", err)
	}

	profile, err := c.Profile()
	if err != nil {
		return err
	}

	list := c.scenarios(profile)
	if len(list) == 0 {
		return invalid("scenarios", "at least one scenario is required", nil)
	}
	seen := make(map[string]bool, len(list))
	for i, sc := range list {
		field := fmt.Sprintf("scenarios[%d]", i)
		mode, err := launcher.ParseMode(sc.Mode)
		if err != nil {
			return invalid(field+".mode", "unknown launch mode", err)
		}
		if err := launcher.CheckMode(profile, mode); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		name := scenarioName(sc, mode)
		if seen[name] {
			return invalid(field+".name", fmt.Sprintf("duplicate scenario name %q", name), nil)
		}
		seen[name] = true
	}
	return nil
}

// scenarios returns the configured list, or the profile's defaults when none
// was configured. Explicit scenarios are never filtered.
func (c *HarnessConfig) scenarios(profile platform.Profile) []ScenarioConfig {
	if len(c.Scenarios) > 0 {
		return c.Scenarios
	}
	return DefaultScenarios(profile)
}

// ResolvedScenarios returns the scenarios that will run.
func (c *HarnessConfig) ResolvedScenarios() ([]ScenarioConfig, error) {
	profile, err := c.Profile()
	if err != nil {
		return nil, err
	}
	return c.scenarios(profile), nil
}

func scenarioName(sc ScenarioConfig, mode launcher.Mode) string {
	if sc.Name != "" {
		return sc.Name
	}
	return string(mode)
}

// DriverOptions converts a validated config into scenario driver input.
func (c *HarnessConfig) DriverOptions() (scenario.Options, []scenario.Scenario, error) {
	profile, err := c.Profile()
	if err != nil {
		return scenario.Options{}, nil, err
	}

	opts := scenario.Options{
		OutputRoot:     c.OutputRoot,
		AppName:        c.AppName,
		Family:         profile.Family,
		Runtime:        profile.Runtime,
		RuntimeInvoker: c.RuntimeInvoker,
		Timeout:        c.Timeout,
		DrainWindow:    c.DrainWindow,
		Collector:      c.Collector,
		Env:            c.Env,
	}

	list := c.scenarios(profile)
	scenarios := make([]scenario.Scenario, 0, len(list))
	for _, sc := range list {
		mode, err := launcher.ParseMode(sc.Mode)
		if err != nil {
			return scenario.Options{}, nil, err
		}
		scenarios = append(scenarios, scenario.Scenario{
			Name:              scenarioName(sc, mode),
			Mode:              mode,
			ExtraExpectations: sc.Expect,
		})
	}
	return opts, scenarios, nil
}

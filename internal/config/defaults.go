package config

import (
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
)

// DefaultHarnessConfig returns a config that runs every launch mode the host
// platform supports with the latest runtime class.
func DefaultHarnessConfig() *HarnessConfig {
	return &HarnessConfig{
		Version:        SchemaVersion,
		OutputRoot:     constants.DefaultOutputRoot,
		AppName:        constants.DefaultAppName,
		Platform:       "auto",
		Runtime:        string(platform.Net7Plus),
		RuntimeInvoker: launcher.DefaultRuntimeInvoker,
		Timeout:        constants.DefaultProcessTimeout,
		DrainWindow:    constants.DefaultDrainWindow,
		Report:         "text",
		Collector:      collector.DefaultConfig(),
		Env:            map[string]string{},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var defaultScenarios = []ScenarioConfig{
	{Name: "instrument-executable", Mode: string(launcher.ModeExecutable)},
	{Name: "instrument-dll", Mode: string(launcher.ModeManagedAssembly)},
}

// DefaultScenarios returns one scenario per launch mode the profile can run.
// .NET Framework gets no managed-assembly scenario.
func DefaultScenarios(profile platform.Profile) []ScenarioConfig {
	out := make([]ScenarioConfig, 0, len(defaultScenarios))
	for _, sc := range defaultScenarios {
		if launcher.CheckMode(profile, launcher.Mode(sc.Mode)) == nil {
			out = append(out, sc)
		}
	}
	return out
}

package config

import (
	"time"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
)

// SchemaVersion is the current harness file version.
const SchemaVersion = "1"

// HarnessConfig is the harness.yaml document.
type HarnessConfig struct {
	Version string `yaml:"version"`

	// OutputRoot holds exactly one runtime-identifier directory.
	OutputRoot string `yaml:"output_root" env:"E2E_OUTPUT_ROOT"`

	// AppName is the host name of the published app, without platform suffix.
	AppName string `yaml:"app_name" env:"E2E_APP_NAME"`

	// Platform is "auto", "windows" or "unix".
	Platform string `yaml:"platform" env:"E2E_PLATFORM"`

	// Runtime is the runtime class: netfx, net6 or net7plus.
	Runtime string `yaml:"runtime" env:"E2E_RUNTIME"`

	// RuntimeInvoker starts managed assemblies. Defaults to "dotnet".
	RuntimeInvoker string `yaml:"runtime_invoker" env:"E2E_RUNTIME_INVOKER"`

	Timeout     time.Duration `yaml:"timeout" env:"E2E_TIMEOUT"`
	DrainWindow time.Duration `yaml:"drain_window" env:"E2E_DRAIN_WINDOW"`

	// Parallel runs scenarios concurrently.
	Parallel bool `yaml:"parallel" env:"E2E_PARALLEL"`

	// Report is the report format: text or json.
	Report string `yaml:"report" env:"E2E_REPORT"`

	Collector collector.Config `yaml:"collector"`

	// Env is passed to the instrumented app on top of the exporter variables.
	Env map[string]string `yaml:"env"`

	// Scenarios lists the runs. Empty means DefaultScenarios for the profile.
	Scenarios []ScenarioConfig `yaml:"scenarios,omitempty"`

	Log LogConfig `yaml:"log"`
}

// ScenarioConfig selects a launch mode and optional extra expectations.
type ScenarioConfig struct {
	Name   string   `yaml:"name"`
	Mode   string   `yaml:"mode"`
	Expect []string `yaml:"expect,omitempty"`
}

// LogConfig configures the harness logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"E2E_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"E2E_LOG_PRETTY"`
}

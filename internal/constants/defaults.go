// Package constants defines shared defaults for the harness.
package constants

import "time"

// Files and names.
const (
	// ConfigFile is the default harness config file name.
	ConfigFile = "harness.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "E2E_"

	// DefaultOutputRoot is the publish directory holding the runtime-identifier directory.
	DefaultOutputRoot = "publish"

	// DefaultAppName is the application host name inside the runtime-identifier directory.
	DefaultAppName = "TestApplication.SelfContained"

	// DefaultServiceName is reported to the instrumented app as OTEL_SERVICE_NAME.
	DefaultServiceName = "selfcontained-e2e"
)

// Collector endpoints. Port 0 binds an ephemeral port so scenarios can run in parallel.
const (
	DefaultOTLPGRPCEndpoint = "127.0.0.1:0"
	DefaultOTLPHTTPEndpoint = "127.0.0.1:0"

	// DefaultOTLPGRPCPort and DefaultOTLPHTTPPort are the well-known OTLP ports
	// used by the standalone collector command.
	DefaultOTLPGRPCPort = 4317
	DefaultOTLPHTTPPort = 4318

	// DefaultOTLPProtocol is advertised to the app through OTEL_EXPORTER_OTLP_PROTOCOL.
	DefaultOTLPProtocol = "http/protobuf"
)

// Timeouts.
const (
	// DefaultProcessTimeout bounds one supervised app run.
	DefaultProcessTimeout = 5 * time.Minute

	// DefaultDrainWindow bounds the wait for late telemetry after the app exits.
	DefaultDrainWindow = 10 * time.Second

	// DefaultWaitDelay bounds how long output pipes may stay open after the process exits.
	DefaultWaitDelay = 5 * time.Second

	// DefaultKillTimeout bounds process-tree enumeration and kill on timeout.
	DefaultKillTimeout = 5 * time.Second

	// DefaultShutdownTimeout bounds collector shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

// Package cli implements the selfcontained-e2e command line.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/config"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/logging"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	pretty     bool
	noColor    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "selfcontained-e2e",
		Short: "End-to-end verification of auto-instrumented self-contained apps",
		Long: `Runs a self-contained published application under its instrumentation
launcher script and verifies that the expected instrumentation libraries
reported spans to a mock OTLP collector.

The harness expects the publish output root to hold exactly one
runtime-identifier directory (for example linux-x64 or win-x64) containing
the app host, its managed assembly and instrument.sh or instrument.cmd.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Harness config file (default ./harness.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.BoolVar(&opts.pretty, "pretty", false, "Human-readable log output")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colors in pretty log output")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newLocateCmd(opts))
	cmd.AddCommand(newCollectorCmd(opts))
	cmd.AddCommand(newProfilesCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the harness config named by --config.
func (o *rootOptions) load() (*config.HarnessConfig, error) {
	return config.Load(o.configPath)
}

// logger builds the harness logger. Flags win over the config file.
func (o *rootOptions) logger(cfg *config.HarnessConfig) zerolog.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.Pretty = o.pretty
	logCfg.NoColor = o.noColor
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Pretty = logCfg.Pretty || cfg.Log.Pretty
	}
	if o.logLevel != "" {
		logCfg.Level = o.logLevel
	}
	return logging.New(logCfg)
}

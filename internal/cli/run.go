package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/config"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/scenario"
)

// runFlags are command-line overrides for the harness file.
type runFlags struct {
	outputRoot string
	appName    string
	platform   string
	runtime    string
	invoker    string
	protocol   string
	format     string
	timeout    time.Duration
	drain      time.Duration
	parallel   bool
	modes      []string
	expect     []string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured scenarios and report the results",
		Long: `Run every configured scenario: locate the deployment, start a mock
collector, launch the app through the instrumentation script and verify the
expected instrumentation libraries reported spans.

The command exits non-zero when any scenario fails.

Examples:
  selfcontained-e2e run --output-root ./publish --app TestApplication.SelfContained
  selfcontained-e2e run --mode executable --expect My.Custom.Library
  selfcontained-e2e run --parallel -o json > report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if err := f.apply(cmd, cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScenarios(ctx, cmd, root, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.outputRoot, "output-root", "", "Publish directory holding the runtime-identifier directory")
	flags.StringVar(&f.appName, "app", "", "Application host name")
	flags.StringVar(&f.platform, "platform", "", "Platform family: auto, windows, unix")
	flags.StringVar(&f.runtime, "runtime", "", "Runtime class: netfx, net6, net7plus")
	flags.StringVar(&f.invoker, "invoker", "", "Runtime invoker for managed-assembly mode")
	flags.StringVar(&f.protocol, "protocol", "", "OTLP protocol advertised to the app: grpc, http/protobuf, http/json")
	flags.DurationVar(&f.timeout, "timeout", 0, "Process timeout per scenario")
	flags.DurationVar(&f.drain, "drain", 0, "How long to wait for late telemetry after the app exits")
	flags.BoolVar(&f.parallel, "parallel", false, "Run scenarios concurrently")
	flags.StringSliceVar(&f.modes, "mode", nil, "Only run these launch modes (executable, managed-assembly)")
	flags.StringSliceVar(&f.expect, "expect", nil, "Additional instrumentation libraries every scenario must report")
	flags.StringVarP(&f.format, "format", "o", "", "Report format: text, json")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{scenario.FormatText, scenario.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// apply overrides cfg with the flags that were set and revalidates it.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.HarnessConfig) error {
	flags := cmd.Flags()
	set := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	set("output-root", &cfg.OutputRoot, f.outputRoot)
	set("app", &cfg.AppName, f.appName)
	set("platform", &cfg.Platform, f.platform)
	set("runtime", &cfg.Runtime, f.runtime)
	set("invoker", &cfg.RuntimeInvoker, f.invoker)
	set("protocol", &cfg.Collector.Protocol, f.protocol)
	set("format", &cfg.Report, f.format)

	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if flags.Changed("drain") {
		cfg.DrainWindow = f.drain
	}
	if flags.Changed("parallel") {
		cfg.Parallel = f.parallel
	}

	if flags.Changed("mode") {
		scenarios := make([]config.ScenarioConfig, 0, len(f.modes))
		for _, m := range f.modes {
			scenarios = append(scenarios, config.ScenarioConfig{Mode: m})
		}
		cfg.Scenarios = scenarios
	}
	if len(f.expect) > 0 {
		if len(cfg.Scenarios) == 0 {
			resolved, err := cfg.ResolvedScenarios()
			if err != nil {
				return err
			}
			cfg.Scenarios = resolved
		}
		for i := range cfg.Scenarios {
			cfg.Scenarios[i].Expect = append(cfg.Scenarios[i].Expect, f.expect...)
		}
	}

	return cfg.Validate()
}

func runScenarios(ctx context.Context, cmd *cobra.Command, root *rootOptions, cfg *config.HarnessConfig) error {
	logger := root.logger(cfg)

	opts, scenarios, err := cfg.DriverOptions()
	if err != nil {
		return err
	}

	results := scenario.NewDriver(opts, logger).RunAll(ctx, scenarios, cfg.Parallel)

	if err := scenario.WriteReport(cmd.OutOrStdout(), cfg.Report, results); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if _, failed := scenario.Counts(results); failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

package cli

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/collector"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
)

func newCollectorCmd(root *rootOptions) *cobra.Command {
	var (
		grpcEndpoint string
		httpEndpoint string
		protocol     string
		expect       []string
		duration     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Run a standalone mock OTLP collector",
		Long: `Run the mock collector on the well-known OTLP ports until interrupted
(or for --duration), printing the exporter environment to point an app at it.
On exit the received instrumentation libraries are printed; with --expect the
command fails if any expected library never reported a span.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			logger := root.logger(cfg)

			flags := cmd.Flags()
			collCfg := cfg.Collector
			collCfg.GRPCEndpoint = listenAddr(flags.Changed("grpc"), grpcEndpoint,
				collCfg.GRPCEndpoint, constants.DefaultOTLPGRPCEndpoint)
			collCfg.HTTPEndpoint = listenAddr(flags.Changed("http"), httpEndpoint,
				collCfg.HTTPEndpoint, constants.DefaultOTLPHTTPEndpoint)
			if flags.Changed("protocol") {
				collCfg.Protocol = protocol
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coll := collector.New(collCfg, logger)
			if err := coll.Start(ctx); err != nil {
				return err
			}
			coll.Expect(expect...)

			out := cmd.OutOrStdout()
			env := coll.Env()
			keys := make([]string, 0, len(env))
			for k := range env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s=%s\n", k, env[k])
			}

			if duration > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(duration):
				}
			} else {
				<-ctx.Done()
			}

			if err := coll.Stop(); err != nil {
				logger.Warn().Err(err).Msg("Mock collector did not stop cleanly")
			}

			stats := coll.Stats()
			fmt.Fprintf(out, "\ntrace batches: %d, spans: %d, metric batches: %d, log batches: %d\n",
				stats.TraceBatches, stats.Spans, stats.MetricBatches, stats.LogBatches)
			received := coll.Received()
			if len(received) == 0 {
				fmt.Fprintln(out, "received: none")
			} else {
				fmt.Fprintf(out, "received: %s\n", strings.Join(received, ", "))
			}

			return coll.AssertExpectations()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&grpcEndpoint, "grpc", wellKnownAddr(constants.DefaultOTLPGRPCPort), "OTLP/gRPC listen address (overrides collector.grpc_endpoint)")
	flags.StringVar(&httpEndpoint, "http", wellKnownAddr(constants.DefaultOTLPHTTPPort), "OTLP/HTTP listen address (overrides collector.http_endpoint)")
	flags.StringVar(&protocol, "protocol", "", "Protocol advertised in the printed environment")
	flags.StringSliceVar(&expect, "expect", nil, "Instrumentation libraries that must report spans")
	flags.DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")

	return cmd
}

func wellKnownAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// listenAddr picks the flag when set, then a configured address, then the
// flag default. The ephemeral scenario default counts as unset.
func listenAddr(flagSet bool, flagValue, configured, ephemeral string) string {
	if flagSet || configured == "" || configured == ephemeral {
		return flagValue
	}
	return configured
}

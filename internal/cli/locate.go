package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/deployment"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
)

func newLocateCmd(root *rootOptions) *cobra.Command {
	var (
		outputRoot string
		appName    string
	)

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve the deployment and print the invocation for each launch mode",
		Long: `Resolve the runtime-identifier directory under the output root and print
the instrumentation command each launch mode would run, without launching
anything. Files that would be missing at launch are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output-root") {
				cfg.OutputRoot = outputRoot
			}
			if cmd.Flags().Changed("app") {
				cfg.AppName = appName
			}

			profile, err := cfg.Profile()
			if err != nil {
				return err
			}
			layout, err := deployment.Locate(cfg.OutputRoot)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Output root:   %s\n", layout.OutputRoot)
			fmt.Fprintf(out, "Platform dir:  %s (%s)\n", layout.PlatformDir, layout.RuntimeIdentifier())
			fmt.Fprintf(out, "Profile:       %s/%s\n", profile.Family, profile.Runtime)
			fmt.Fprintf(out, "Expects:       %s\n\n", strings.Join(profile.ExpectedLibraries, ", "))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tSTATUS\tCOMMAND")
			for _, mode := range []launcher.Mode{launcher.ModeExecutable, launcher.ModeManagedAssembly} {
				inv, err := launcher.BuildInvocation(launcher.Request{
					Layout:         layout,
					AppName:        cfg.AppName,
					Mode:           mode,
					Profile:        profile,
					RuntimeInvoker: cfg.RuntimeInvoker,
				})
				if err != nil {
					fmt.Fprintf(w, "%s\tunsupported\t%s\n", mode, err)
					continue
				}
				status := "ok"
				if err := inv.Validate(); err != nil {
					status = "invalid: " + err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", mode, status, inv)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&outputRoot, "output-root", "", "Publish directory holding the runtime-identifier directory")
	cmd.Flags().StringVar(&appName, "app", "", "Application host name")

	return cmd
}

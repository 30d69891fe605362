package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/launcher"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/platform"
)

type profileRow struct {
	Platform          string   `json:"platform"`
	Runtime           string   `json:"runtime"`
	Executable        string   `json:"executable_suffix"`
	Script            string   `json:"script"`
	Modes             []string `json:"modes"`
	ExpectedLibraries []string `json:"expected_libraries"`
}

func profileRows() []profileRow {
	var rows []profileRow
	for _, p := range platform.Profiles() {
		var modes []string
		for _, m := range []launcher.Mode{launcher.ModeExecutable, launcher.ModeManagedAssembly} {
			if launcher.CheckMode(p, m) == nil {
				modes = append(modes, string(m))
			}
		}
		rows = append(rows, profileRow{
			Platform:          string(p.Family),
			Runtime:           string(p.Runtime),
			Executable:        p.ExecutableSuffix,
			Script:            launcher.ScriptBaseName + p.ScriptSuffix,
			Modes:             modes,
			ExpectedLibraries: p.ExpectedLibraries,
		})
	}
	return rows
}

func newProfilesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Print the platform and runtime launch table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := profileRows()
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				data, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal profiles: %w", err)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			case "table":
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PLATFORM\tRUNTIME\tEXE SUFFIX\tSCRIPT\tMODES\tEXPECTED LIBRARIES")
				for _, r := range rows {
					suffix := r.Executable
					if suffix == "" {
						suffix = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.Platform, r.Runtime, suffix, r.Script,
						strings.Join(r.Modes, ","), strings.Join(r.ExpectedLibraries, ","))
				}
				return w.Flush()
			default:
				return fmt.Errorf("unsupported format %q, must be one of: table, json", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", "table", "Output format (table, json)")
	return cmd
}

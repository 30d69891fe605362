package cli

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if asJSON {
				data, err := json.Marshal(info)
				if err != nil {
					return fmt.Errorf("failed to marshal version: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			cmd.Printf("selfcontained-e2e version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
			cmd.Printf("Platform: %s\n", info.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

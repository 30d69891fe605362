package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/config"
	"github.com/sam9291/opentelemetry-dotnet-instrumentation/internal/constants"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default harness config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := constants.ConfigFile
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.Save(path, config.DefaultHarnessConfig()); err != nil {
				return err
			}
			cmd.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

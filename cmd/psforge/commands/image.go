package commands

import (
	"github.com/spf13/cobra"

	"github.com/psforge/psforge/cmd/psforge/handlers"
)

// Image returns the command for building machine images without deploying.
func Image() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Build the per-role machine images",
		Long: `Build a machine image for each service role without touching the stack.

The produced image IDs are written back into the config file, so a later
'psforge deploy --skip-images' reuses them.

Example:
  psforge image -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Image(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: psforge.yaml)")

	return cmd
}

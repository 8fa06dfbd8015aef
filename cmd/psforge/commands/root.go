// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing and flag binding. Command execution is delegated to handler
// functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the psforge CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "psforge",
		Short: "Deploy the pixel streaming platform on AWS",
	}

	cmd.AddCommand(Deploy())
	cmd.AddCommand(Image())
	cmd.AddCommand(Cleanup())
	cmd.AddCommand(Version())

	return cmd
}

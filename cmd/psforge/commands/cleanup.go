package commands

import (
	"github.com/spf13/cobra"

	"github.com/psforge/psforge/cmd/psforge/handlers"
)

// Cleanup returns the command for tearing down a deployment.
//
// Resources are removed in dependency order: service instances, the stack,
// then optionally the built images and the SSH key pair. Every step is best
// effort, so a partially failed cleanup can simply be rerun.
func Cleanup() *cobra.Command {
	var opts handlers.CleanupOptions

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Destroy the platform and all associated resources",
		Long: `Destroy the deployed platform.

This command terminates the service instances, deletes the CloudFormation
stack, and removes the local deployment record. Built images and the SSH
key pair are kept unless explicitly requested.

Examples:
  # Interactive teardown keeping images and keys
  psforge cleanup

  # Remove everything including images and the key pair, no prompt
  psforge cleanup --delete-images --delete-keys --force

  # Clean up a deployment whose config file is gone
  psforge cleanup --stack-name ps-test --region eu-west-1 --force

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: psforge.yaml)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "Override the config file's region")
	cmd.Flags().StringVar(&opts.StackName, "stack-name", "", "Override the config file's stack name")
	cmd.Flags().BoolVar(&opts.DeleteImages, "delete-images", false, "Also deregister the built images and delete their snapshots")
	cmd.Flags().BoolVar(&opts.DeleteKeys, "delete-keys", false, "Also delete the EC2 key pair and local private key file")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Skip the confirmation prompt")

	return cmd
}

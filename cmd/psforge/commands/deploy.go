package commands

import (
	"github.com/spf13/cobra"

	"github.com/psforge/psforge/cmd/psforge/handlers"
)

// Deploy returns the command for deploying the platform.
//
// The deploy command runs the full pipeline: per-role machine images are
// built (or reused with --skip-images), the platform stack is created or
// updated, and the service instances are brought up and health-checked.
// Updating an existing stack asks for confirmation unless --yes is given.
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build images and deploy the platform",
		Long: `Deploy the pixel streaming platform.

This command builds a machine image for each service role (signalling,
matchmaker, frontend), converges the CloudFormation stack, launches one
service instance per role, and verifies each through its load-balancer
target group.

If no config file is specified, it looks for psforge.yaml in the current
directory.

Examples:
  # Full deployment using psforge.yaml in current directory
  psforge deploy

  # Deploy using a specific config file
  psforge deploy -c production.yaml

  # Redeploy without rebuilding images, updating the stack without a prompt
  psforge deploy --skip-images --yes

  # Deploy the same config under a different stack name and region
  psforge deploy --stack-name ps-staging --region eu-central-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: psforge.yaml)")
	cmd.Flags().StringVar(&opts.Region, "region", "", "Override the config file's region")
	cmd.Flags().StringVar(&opts.StackName, "stack-name", "", "Override the config file's stack name")
	cmd.Flags().BoolVar(&opts.SkipImages, "skip-images", false, "Reuse image IDs from the config instead of building")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "Update an existing stack without asking for confirmation")

	return cmd
}

package commands

import (
	"github.com/spf13/cobra"
)

// Build metadata, stamped through SetVersionInfo at startup.
var version, commit, date = "dev", "none", "unknown"

// SetVersionInfo records the build metadata injected via ldflags.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build metadata",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("psforge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

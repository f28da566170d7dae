package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCommand creates the version command.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display cloudscape version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cloudscape v%s\n", Version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Build date: %s, commit: %s\n", BuildDate, GitCommit)
		},
	}
}

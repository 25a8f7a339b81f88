package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display fraudviz version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fraudviz v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Fraud graph explorer (commit %s, built %s)\n", commit, date)
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxprint/cmd/voxprint/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// No config needed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("output") || jqExpr != "" {
			return output(cmd, build.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

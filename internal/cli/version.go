package cli

import (
	"fmt"

	"github.com/homeport/stackpilot/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version, commit hash, and build date of stackpilot.`,
	Run: func(cmd *cobra.Command, args []string) {
		if IsVerbose() {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

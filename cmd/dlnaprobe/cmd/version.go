package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/dlnaprobe/internal/version"
)

var versionJSON bool

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of dlnaprobe.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		if versionJSON {
			s, err := version.JSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, s)
			return nil
		}

		fmt.Fprintln(out, version.String())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output version information as JSON")
	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sift-lang/sift/lib/consts"
)

func getVersionCmd() *cobra.Command {
	// versionCmd represents the version command.
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, "sift v"+consts.Version)
		},
	}
	return versionCmd
}

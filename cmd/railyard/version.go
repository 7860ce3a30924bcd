package main

import (
	"fmt"

	"github.com/aretw0/railyard"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of railyard",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "railyard version %s\n", railyard.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

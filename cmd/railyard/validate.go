package main

import (
	"github.com/aretw0/railyard/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the rails for errors",
	Long: `Compiles the rails and reports syntax errors, dangling references,
unknown guards and unregistered actions. Unused definitions are warnings.
No model provider or store is contacted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunValidate(options(cmd, args), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

package main

import (
	"github.com/aretw0/railyard/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export the flows as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) with one subgraph per flow.
With --session, the flows visited by that session and its current step are highlighted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		return cli.RunGraph(cmd.Context(), cli.GraphOptions{
			Options:   options(cmd, args),
			SessionID: sessionID,
		}, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("session", "", "Highlight the state of a stored session")
}

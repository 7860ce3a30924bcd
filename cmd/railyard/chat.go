package main

import (
	"github.com/aretw0/railyard/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [dir]",
	Short: "Chat with the rails in the terminal",
	Long: `Starts a session and reads user messages from standard input.
Type 'exit', 'quit' or 'q' to leave. With --json, each input line is a string
or {"text": ...} and each reply is written as one JSON object.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		watchMode, _ := cmd.Flags().GetBool("watch")
		return cli.RunChat(cmd.Context(), cli.ChatOptions{
			Options: options(cmd, args),
			JSON:    jsonMode,
			Watch:   watchMode,
			Stdin:   cmd.InOrStdin(),
			Stdout:  cmd.OutOrStdout(),
			Stderr:  cmd.ErrOrStderr(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().BoolP("watch", "w", false, "Reload the rails when their files change")

	rootCmd.RunE = chatCmd.RunE
	rootCmd.Args = chatCmd.Args
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())
}

package main

import (
	"github.com/aretw0/railyard/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect stored sessions",
	Long:  `Lists, shows or ends sessions in the configured store (see the redis section of config.yml).`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session IDs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessions(cmd.Context(), options(cmd, nil), cli.SessionList, "", cmd.OutOrStdout())
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessions(cmd.Context(), options(cmd, nil), cli.SessionShow, args[0], cmd.OutOrStdout())
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <id>",
	Short: "Discard a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunSessions(cmd.Context(), options(cmd, nil), cli.SessionEnd, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionEndCmd)
}

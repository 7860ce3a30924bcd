package main

import (
	"github.com/aretw0/railyard/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Serve the session API over HTTP",
	Long: `Starts the HTTP server: sessions, messages, server-sent events,
Prometheus metrics on /metrics and the OpenAPI document on /openapi.yaml.
Idle sessions are expired on session.sweep_schedule.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		watchMode, _ := cmd.Flags().GetBool("watch")
		return cli.RunServe(cmd.Context(), cli.ServeOptions{
			Options: options(cmd, args),
			Addr:    addr,
			Watch:   watchMode,
			Stderr:  cmd.ErrOrStderr(),
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the rails when their files change")
}

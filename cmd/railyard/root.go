package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/railyard/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "railyard",
	Short: "Railyard keeps conversations with a language model on rails",
	Long: `Railyard maps user messages to canonical intents, drives scripted dialog
flows and runs guards on every input, retrieval and output.
Rails are written as .co files next to a config.yml.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the rails")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config.yml)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides config.yml)")
	rootCmd.PersistentFlags().String("actions", "", "Actions file (default <dir>/actions.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every lifecycle event")
}

// options reads the persistent flags. A positional argument is taken as the
// rails directory unless --dir was given.
func options(cmd *cobra.Command, args []string) cli.Options {
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	if !flags.Changed("dir") && len(args) > 0 {
		dir = args[0]
	}
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	actions, _ := flags.GetString("actions")
	debug, _ := flags.GetBool("debug")
	return cli.Options{
		Dir:       dir,
		LogLevel:  level,
		LogFormat: format,
		Actions:   actions,
		Debug:     debug,
	}
}

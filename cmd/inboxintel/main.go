// Package main contains the entrypoint for the InboxIntel pipeline.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inboxintel",
		Short:         "InboxIntel: classify guest messages and alert the host",
		Long:          "InboxIntel ingests guest messages from Guesty, classifies them with a language model, alerts on the ones that need attention and sends a daily arrivals digest.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml if present)")

	root.AddCommand(serveCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(checkCmd())
	return root
}

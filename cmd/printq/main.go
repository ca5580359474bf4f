package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/cli"
)

// Set at build time via ldflags.
var appVersion = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "printq",
		Short:   "Perfect Menu receipt print queue",
		Version: appVersion,
		Long: `printq drains the restaurant's print job queue into an ESC/POS
network printer, exposes printer health, and can stand in as the
websocket agent that receives orders from the ordering backend.`,
		SilenceUsage: true,
	}
	cli.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.WorkCmd())
	rootCmd.AddCommand(cli.ProcessCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.TestPrintCmd())
	rootCmd.AddCommand(cli.EnqueueCmd())
	rootCmd.AddCommand(cli.JobsCmd())
	rootCmd.AddCommand(cli.RequeueCmd())
	rootCmd.AddCommand(cli.DiscoverCmd())
	rootCmd.AddCommand(cli.AgentCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.SetupCmd(appVersion))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

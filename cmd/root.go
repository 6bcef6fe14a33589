// Package cmd defines and implements the CLI commands for the boe-harvester
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boe-harvester",
		Short: "Incrementally harvests the BOE daily-gazette publication feed.",
		Long: `boe-harvester walks a range of calendar days, fetches the daily gazette
index for each one, persists the per-item metadata to a CSV store, and
optionally downloads each referenced document. Progress is checkpointed per
completed day so an interrupted run resumes where it left off.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus BOE_* env vars)")

	cmd.AddCommand(newHarvestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

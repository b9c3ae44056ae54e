package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "matflow",
		Short: "Matflow - Material Routing Controller",
		Long: `Matflow routes materials from intake nodes to pooled output stations
through a REST node gateway.

Features:
  - Identity-tag role classification with pattern matching
  - Coordinate-offset pairing of item and fluid stations
  - Round-robin or linear output allocation
  - Marker-driven station reconfiguration
  - SQLite transfer journal and Prometheus metrics`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "matflow.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newCycleCommand())
	rootCmd.AddCommand(newNodesCommand())
	rootCmd.AddCommand(newJournalCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

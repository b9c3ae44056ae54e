package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the routing control loop",
		Long: `Discover resource nodes, build the output pool, and route intake
materials until interrupted.

Discovery happens once at startup; a fatal error anywhere (retry
exhaustion, capability mismatch, marker value out of range) stops the
whole controller.`,
		Example: `  # Run with the default config file
  matflow run

  # Run with a specific config
  matflow run --config /etc/matflow/matflow.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.metrics.StartMetricsServer(a.log)

			loop, err := a.buildLoop(ctx)
			if err != nil {
				return err
			}

			if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCycleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Execute exactly one control cycle",
		Long: `Run a single check-select-dispatch pass and report its outcome.

Useful for diagnostics and benchmarks: discovery and pairing run the
same way as under 'run', but the loop executes once and exits.`,
		Example: `  # One diagnostic pass
  matflow cycle`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			loop, err := a.buildLoop(ctx)
			if err != nil {
				return err
			}

			outcome, err := loop.RunOnce(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("cycle outcome: %s\n", outcome)
			return nil
		},
	}

	return cmd
}

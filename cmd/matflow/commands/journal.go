package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matflow/matflow/pkg/config"
	"github.com/matflow/matflow/pkg/journal"
)

func newJournalCommand() *cobra.Command {
	var (
		limit   int
		cycleID string
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the transfer journal",
		Long: `List recorded control cycles, or the transfers of one cycle when
--cycle is given. Requires journaling to be enabled in the config.`,
		Example: `  # Last 20 cycles
  matflow journal

  # Transfers of one cycle
  matflow journal --cycle 6b9f8a7e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return fmt.Errorf("journaling is not enabled in %s", configPath)
			}

			jrnl, err := journal.Open(ctx, cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer jrnl.Close()

			if cycleID != "" {
				return printTransfers(ctx, jrnl, cycleID)
			}
			return printCycles(ctx, jrnl, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cycles to list")
	cmd.Flags().StringVar(&cycleID, "cycle", "", "list transfers of one cycle")

	return cmd
}

func printCycles(ctx context.Context, jrnl *journal.Journal, limit int) error {
	cycles, err := jrnl.ListCycles(ctx, limit, 0)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cycles)
	}

	for _, c := range cycles {
		completed := "-"
		if c.CompletedAt != nil {
			completed = c.CompletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  %-8s  started=%s  completed=%s\n",
			c.ID, c.Outcome, c.StartedAt.Format("2006-01-02 15:04:05"), completed)
	}
	return nil
}

func printTransfers(ctx context.Context, jrnl *journal.Journal, cycleID string) error {
	transfers, err := jrnl.ListTransfersByCycle(ctx, cycleID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(transfers)
	}

	for _, t := range transfers {
		fmt.Printf("%-14s  %s -> %s  %s x%d\n", t.Kind, t.Source, t.Dest, t.Resource, t.Amount)
	}
	return nil
}

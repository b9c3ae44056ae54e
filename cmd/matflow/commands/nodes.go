package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matflow/matflow/pkg/controller"
	"github.com/matflow/matflow/pkg/nodes"
)

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Discover and classify resource nodes",
		Long: `Run discovery against the gateway and print the resulting role
assignments without starting the control loop.`,
		Example: `  # Show the classification table
  matflow nodes

  # Machine-readable output
  matflow nodes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			bindings, err := a.discover(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printBindingsJSON(bindings)
			}
			printBindings(bindings)
			return nil
		},
	}

	return cmd
}

func printBindings(b *controller.Bindings) {
	address := func(n nodes.Client) string {
		if n == nil {
			return "<unbound>"
		}
		return n.Address()
	}

	fmt.Printf("intake-items:  %s\n", address(b.IntakeItems))
	fmt.Printf("intake-fluids: %s\n", address(b.IntakeFluids))
	fmt.Printf("config-return: %s\n", address(b.ConfigReturn))

	fmt.Printf("output-items (%d):\n", len(b.OutputItems))
	for _, n := range b.OutputItems {
		fmt.Printf("  %s\n", n.Address())
	}
	fmt.Printf("output-fluids (%d):\n", len(b.OutputFluids))
	for _, n := range b.OutputFluids {
		fmt.Printf("  %s\n", n.Address())
	}
}

func printBindingsJSON(b *controller.Bindings) error {
	address := func(n nodes.Client) string {
		if n == nil {
			return ""
		}
		return n.Address()
	}
	addresses := func(list []nodes.Client) []string {
		out := make([]string, 0, len(list))
		for _, n := range list {
			out = append(out, n.Address())
		}
		return out
	}

	doc := map[string]any{
		"intake_items":  address(b.IntakeItems),
		"intake_fluids": address(b.IntakeFluids),
		"config_return": address(b.ConfigReturn),
		"output_items":  addresses(b.OutputItems),
		"output_fluids": addresses(b.OutputFluids),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matflow/matflow/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Parse the config file and run every structural and cross-field
check without contacting the gateway.`,
		Example: `  matflow validate --config matflow.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", configPath)
			return nil
		},
	}

	return cmd
}

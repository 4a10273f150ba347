package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittomds/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate configuration without starting the server. Exits
non-zero and prints the first validation error encountered.

Examples:
  dittomds config validate --config /etc/dittomds/config.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	v, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if _, err := config.Unmarshal(v); err != nil {
		return err
	}

	fmt.Println("configuration is valid")
	return nil
}

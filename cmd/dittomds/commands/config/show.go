package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/dittomds/pkg/config"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration dittomds would run with: built-in defaults
layered with the config file and environment variables.

Examples:
  dittomds config show
  dittomds config show --output json
  dittomds config show --config /etc/dittomds/config.yaml`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "output", "o", "yaml", "output format (yaml|json)")
}

func runShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	v, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		return err
	}

	switch showFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml", "":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", showFormat)
	}
}

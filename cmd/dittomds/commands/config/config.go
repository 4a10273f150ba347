// Package config implements dittomds' "config" subcommand group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
	Long: `Inspect and validate dittomds configuration.

Subcommands:
  show      Display the effective configuration
  validate  Validate a configuration file without starting the server`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
}

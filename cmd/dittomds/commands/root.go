// Package commands implements dittomds' CLI command tree.
package commands

import (
	"github.com/spf13/cobra"

	cfgcmd "github.com/marmos91/dittomds/cmd/dittomds/commands/config"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// cfgFile is the global --config persistent flag shared by every
// subcommand.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dittomds",
	Short: "dittomds - distributed filesystem metadata server",
	Long: `dittomds serves the client-facing RPC protocol for a distributed
filesystem's metadata plane: framing requests off the wire, dispatching
them to an executor pool, and flow-controlling the connection in between.

Use "dittomds [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: built-in defaults + environment)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cfgcmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the --config flag's value.
func GetConfigFile() string {
	return cfgFile
}

// Package commands implements the eludris CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eludris/eludris/pkg/config"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "eludris",
	Short: "Eludris - a free and open source federated chat platform",
	Long: `Eludris runs a self-hosted chat instance made of three services:

  oprish       the REST API
  pandemonium  the WebSocket gateway
  effis        the file server and media proxy

Each service can run as its own process, or all three can share one with
"eludris all". Use "eludris [command] --help" for more information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./eludris.yaml or /etc/eludris/eludris.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(allCmd)
	rootCmd.AddCommand(migrateCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("eludris %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

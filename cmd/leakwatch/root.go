package main

import (
	"github.com/spf13/cobra"

	"github.com/leakwatch/leakwatch/internal/logging"
)

var currentCommandPath = "leakwatch"

var rootCmd = &cobra.Command{
	Use:           "leakwatch",
	Short:         "Leakwatch watches breach and leak sources for your identifiers.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		currentCommandPath = cmd.CommandPath()
		_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: currentCommandPath})
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, workerCmd, runConnectorsCmd, runAlertsCmd, migrateCmd)
}

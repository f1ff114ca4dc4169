package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dicelink-cli",
	Short: "Dicelink CLI tool",
	Long: `Dicelink CLI is a command-line companion for the Dicelink game server.

Available commands:
  serve            Run the game server
  rules-validate   Check a house-rules script before deploying it
  transcript       Print the archived transcript of a finished game

Use "dicelink-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

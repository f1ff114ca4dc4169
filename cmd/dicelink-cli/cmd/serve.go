package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"dicelink/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Dicelink game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := server.New()
		if err != nil {
			return fmt.Errorf("initializing server: %w", err)
		}
		return s.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

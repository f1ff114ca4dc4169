package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dicelink/internal/rules"
)

var rulesValidateCmd = &cobra.Command{
	Use:   "rules-validate <script>",
	Short: "Check a house-rules script before deploying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}

		engine := rules.NewEngine()
		if err := engine.LoadScript(src); err != nil {
			return fmt.Errorf("script rejected: %w", err)
		}

		fmt.Printf("%s is valid (ones wild: %v)\n", args[0], engine.OnesWild())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesValidateCmd)
}

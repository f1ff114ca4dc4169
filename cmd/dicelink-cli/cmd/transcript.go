package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"dicelink/internal/storage"
)

var transcriptDir string

var transcriptCmd = &cobra.Command{
	Use:   "transcript <game-id>",
	Short: "Print the archived transcript of a finished game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gameID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("bad game id %q: %w", args[0], err)
		}

		store := storage.NewTranscriptStore(afero.NewOsFs(), transcriptDir)
		transcript, err := store.Load(context.Background(), gameID)
		if err != nil {
			return fmt.Errorf("loading transcript: %w", err)
		}

		fmt.Printf("Game %s, finished %s\n", transcript.GameID, transcript.FinishedAt.Format("2006-01-02 15:04:05"))
		if transcript.WinnerID != nil {
			fmt.Printf("Winner: %s\n", *transcript.WinnerID)
		}
		for _, entry := range transcript.Entries {
			fmt.Printf("%s  %-18s %s\n", entry.At.Format("15:04:05"), entry.Kind, string(entry.Payload))
		}
		return nil
	},
}

func init() {
	transcriptCmd.Flags().StringVar(&transcriptDir, "dir", "transcripts", "directory holding transcript files")
	rootCmd.AddCommand(transcriptCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show your game history and win count.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			history, err := app.api.History(cmd.Context())
			if err != nil {
				return err
			}

			if history.TotalGames == 0 {
				fmt.Println("No games played yet.")
				return nil
			}

			fmt.Printf("Played %d game%s, won %d.\n\n", history.TotalGames, plural(history.TotalGames), history.GamesWon)
			for _, record := range history.Games {
				outcome := "lost"
				switch {
				case record.Won:
					outcome = fmt.Sprintf("won in %d", record.GuessesCount)
				case record.InProgress:
					outcome = fmt.Sprintf("in progress (%d guess%s)", record.GuessesCount, map[bool]string{true: "", false: "es"}[record.GuessesCount == 1])
				}
				fmt.Printf("  %s  %s\n", record.PuzzleDate, outcome)
			}
			return nil
		},
	}
}

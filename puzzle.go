package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newPuzzleCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "puzzle",
		Short: "Manage the daily puzzle schedule (game makers only).",
	}
	cmd.AddCommand(newPuzzleGetCmd(cfg), newPuzzleSetCmd(cfg))
	return cmd
}

func newPuzzleGetCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "List scheduled puzzles.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireLogin(cmd, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			schedule, err := app.api.Puzzles(cmd.Context())
			if err != nil {
				return err
			}
			if len(schedule.Puzzles) == 0 {
				fmt.Println("No puzzles scheduled.")
				return nil
			}
			for _, entry := range schedule.Puzzles {
				word := entry.Word
				if word == "" {
					word = "(hidden)"
				}
				fmt.Printf("  %s  %s\n", entry.PuzzleDate, word)
			}
			return nil
		},
	}
}

func newPuzzleSetCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set <date> <word>",
		Short: "Schedule the word for a puzzle date.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireLogin(cmd, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			date, word := args[0], strings.ToUpper(args[1])
			if _, err := time.ParseInLocation("2006-01-02", date, time.Local); err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			if len(word) != 5 {
				return fmt.Errorf("word must be 5 letters, got %q", word)
			}

			if err := app.api.SetPuzzle(cmd.Context(), date, word); err != nil {
				return err
			}
			fmt.Printf("Scheduled %s for %s.\n", word, date)
			return nil
		},
	}
}

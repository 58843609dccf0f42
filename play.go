package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vortamiko/internal/convert"
	"vortamiko/internal/game"
	"vortamiko/internal/play"
	"vortamiko/internal/progress"
)

func newPlayCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play today's puzzle in the terminal.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, cleanup, err := buildController(cmd, cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			return runPlay(cmd, controller)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.WordsFile, "words-file", "data/words.json", "word list for standalone play (env: VORTAMIKO_WORDS_FILE)")
	fs.BoolVar(&cfg.Standalone, "standalone", false, "play offline against the local word list (env: VORTAMIKO_STANDALONE)")
	return cmd
}

func buildController(cmd *cobra.Command, cfg *Config) (*play.Controller, func(), error) {
	if cfg.Standalone {
		bank, err := game.LoadWordBank(cfg.WordsFile)
		if err != nil {
			return nil, nil, err
		}
		controller := play.NewController(play.Options{Standalone: true, Bank: bank})
		controller.Start(cmd.Context())
		return controller, func() {}, nil
	}

	app, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	controller := play.NewController(play.Options{
		API:       app.api,
		Loader:    progress.NewLoader(app.api),
		Converter: convert.NewCoordinator(app.api, app.sessions, app.auth),
		Tokens:    app.auth,
	})
	controller.Start(cmd.Context())
	return controller, app.Close, nil
}

func runPlay(cmd *cobra.Command, controller *play.Controller) error {
	view := controller.Snapshot()
	fmt.Printf("Puzzle for %s. Guess the 5-letter word!\n", view.PuzzleDate)
	if view.Hint != "" {
		fmt.Printf("Hint: %s\n", view.Hint)
	}
	fmt.Println()
	printBoard(view)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for controller.Snapshot().Status == game.StatusPlaying {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		word := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		if len(word) != game.WordLength {
			fmt.Printf("Words are %d letters.\n", game.WordLength)
			continue
		}

		controller.TypeWord(word)
		controller.Submit(cmd.Context())

		view = controller.Snapshot()
		if view.LastError != "" {
			fmt.Println(view.LastError)
			controller.ClearError()
			continue
		}
		printBoard(view)
	}

	view = controller.Snapshot()
	switch view.Status {
	case game.StatusWon:
		fmt.Printf("You won in %d guess%s!\n", len(view.Guesses), map[bool]string{true: "", false: "es"}[len(view.Guesses) == 1])
	case game.StatusLost:
		fmt.Println("Out of guesses. Better luck tomorrow!")
	}
	return nil
}

// printBoard renders graded rows with a marker line: * for a correct
// position, + for a letter elsewhere in the word, . for a miss.
func printBoard(view play.View) {
	for _, move := range view.Guesses {
		var letters, marks strings.Builder
		for _, gl := range move {
			letters.WriteString(gl.Letter + " ")
			switch gl.Grade {
			case game.GradeCorrect:
				marks.WriteString("* ")
			case game.GradeContained:
				marks.WriteString("+ ")
			default:
				marks.WriteString(". ")
			}
		}
		fmt.Println(letters.String())
		fmt.Println(marks.String())
	}
	remaining := game.MaxGuesses - len(view.Guesses)
	if remaining > 0 && view.Status == game.StatusPlaying {
		fmt.Printf("%d guess%s left.\n", remaining, map[bool]string{true: "", false: "es"}[remaining == 1])
	}
}

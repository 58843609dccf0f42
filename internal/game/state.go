package game

import (
	"time"

	"github.com/samber/lo"
)

// Game configuration constants
const (
	MaxGuesses = 6 // Maximum number of guesses per game
	WordLength = 5 // Length of the word to guess
)

// Letter grade constants, ordered by display priority for keyboard aggregation.
const (
	GradeCorrect   = "correct"
	GradeContained = "contained"
	GradeWrong     = "wrong"
)

// Status represents the lifecycle of a single puzzle.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// GradedLetter is one guess character after evaluation against the answer.
type GradedLetter struct {
	Letter string `json:"letter"`
	Grade  string `json:"grade"`
}

// GradedMove is one completed guess row of exactly WordLength letters.
// Position is significant.
type GradedMove []GradedLetter

// Snapshot is the server-authoritative view of a game, as reconciled into
// local state. Moves never exceed MaxGuesses.
type Snapshot struct {
	Won   bool
	Moves []GradedMove
}

// State is the local game state. It is mutated exclusively through Reduce
// and replaced wholesale when server state is reconciled.
type State struct {
	PuzzleDate             string
	Answer                 string // set only in standalone mode
	CurrentGuess           string
	Guesses                []GradedMove
	Status                 Status
	IsSubmitting           bool
	CompletedDuringSession bool
}

// NewState returns a fresh playing state for the given puzzle date.
func NewState(puzzleDate string) State {
	return State{
		PuzzleDate: puzzleDate,
		Status:     StatusPlaying,
		Guesses:    []GradedMove{},
	}
}

// Today returns the puzzle date for the given instant in the local timezone,
// never UTC-shifted.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}

// gradeRank orders grades for keyboard aggregation. Higher wins.
func gradeRank(grade string) int {
	switch grade {
	case GradeCorrect:
		return 3
	case GradeContained:
		return 2
	case GradeWrong:
		return 1
	default:
		return 0
	}
}

// KeyStates derives the best grade seen for each letter across all graded
// rows. Letters never guessed are absent from the map. This is a pure
// projection over Guesses and is recomputed on demand, never stored.
func KeyStates(guesses []GradedMove) map[string]string {
	states := make(map[string]string)
	lo.ForEach(guesses, func(move GradedMove, _ int) {
		for _, gl := range move {
			if gradeRank(gl.Grade) > gradeRank(states[gl.Letter]) {
				states[gl.Letter] = gl.Grade
			}
		}
	})
	return states
}

// statusFromSnapshot derives local status from server-authoritative state.
func statusFromSnapshot(snap Snapshot) Status {
	switch {
	case snap.Won:
		return StatusWon
	case len(snap.Moves) >= MaxGuesses:
		return StatusLost
	default:
		return StatusPlaying
	}
}

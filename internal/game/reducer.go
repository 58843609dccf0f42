package game

// Action is one input to the reducer. Every action has a defined result for
// every state; transitions that are illegal in the current state are silent
// no-ops rather than errors, since user input routinely races state changes.
type Action interface {
	isAction()
}

// AddLetter appends one letter to the guess buffer while playing.
type AddLetter struct {
	Letter rune
}

// RemoveLetter drops the last letter from the guess buffer while playing.
type RemoveLetter struct{}

// SubmitGuessStart marks a submission in flight. It is the sole guard
// against duplicate in-flight submissions.
type SubmitGuessStart struct{}

// SubmitGuessSuccess reconciles the server's graded state after a
// successful submission.
type SubmitGuessSuccess struct {
	Server Snapshot
}

// SubmitGuessError clears the in-flight flag, preserving the guess buffer
// so the player can retry or edit.
type SubmitGuessError struct{}

// LoadGameProgress reconciles stored server state on mount or date change.
// Unlike SubmitGuessSuccess it never marks the game as completed during
// this session.
type LoadGameProgress struct {
	Server Snapshot
}

// NewGame resets to a fresh playing state for the given puzzle date.
// Answer is set only in standalone mode.
type NewGame struct {
	PuzzleDate string
	Answer     string
}

func (AddLetter) isAction()          {}
func (RemoveLetter) isAction()       {}
func (SubmitGuessStart) isAction()   {}
func (SubmitGuessSuccess) isAction() {}
func (SubmitGuessError) isAction()   {}
func (LoadGameProgress) isAction()   {}
func (NewGame) isAction()            {}

// Reduce applies an action to a state and returns the next state. It is
// pure and total: no side effects, defined for every action/state pair.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case AddLetter:
		if s.Status != StatusPlaying || len(s.CurrentGuess) >= WordLength {
			return s
		}
		letter := normalizeLetter(act.Letter)
		if letter == "" {
			return s
		}
		s.CurrentGuess += letter
		return s

	case RemoveLetter:
		if s.Status != StatusPlaying || len(s.CurrentGuess) == 0 {
			return s
		}
		s.CurrentGuess = s.CurrentGuess[:len(s.CurrentGuess)-1]
		return s

	case SubmitGuessStart:
		if s.Status != StatusPlaying || s.IsSubmitting || len(s.CurrentGuess) != WordLength {
			return s
		}
		s.IsSubmitting = true
		return s

	case SubmitGuessSuccess:
		next := applySnapshot(s, act.Server)
		if s.Status == StatusPlaying && next.Status != StatusPlaying {
			next.CompletedDuringSession = true
		}
		return next

	case SubmitGuessError:
		s.IsSubmitting = false
		return s

	case LoadGameProgress:
		return applySnapshot(s, act.Server)

	case NewGame:
		next := NewState(act.PuzzleDate)
		next.Answer = act.Answer
		return next

	default:
		return s
	}
}

// applySnapshot replaces graded rows with the server's and rederives status.
func applySnapshot(s State, snap Snapshot) State {
	moves := make([]GradedMove, len(snap.Moves))
	copy(moves, snap.Moves)

	s.Guesses = moves
	s.CurrentGuess = ""
	s.IsSubmitting = false
	s.Status = statusFromSnapshot(snap)
	return s
}

// normalizeLetter maps an input rune to a single uppercase A-Z letter, or
// empty if it is not a letter.
func normalizeLetter(r rune) string {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 'A' || r > 'Z' {
		return ""
	}
	return string(r)
}

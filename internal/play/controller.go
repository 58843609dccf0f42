// Package play drives one player's game: it owns the reducer state, runs
// the submit flow against the scorekeeper, reconciles saved progress, and
// triggers session conversion after login.
package play

import (
	"context"
	"log"
	"sync"
	"time"

	"vortamiko/internal/convert"
	"vortamiko/internal/game"
	"vortamiko/internal/identity"
	"vortamiko/internal/progress"
	"vortamiko/internal/scorekeeper"
)

// GameAPI is the slice of the gateway the controller submits through.
type GameAPI interface {
	SubmitGuess(ctx context.Context, puzzleDate, word string) (*scorekeeper.GameState, error)
}

// Options configures a controller. Bank and Standalone select local play
// with no scorekeeper; API, Loader, Converter and Tokens drive online play.
type Options struct {
	API        GameAPI
	Loader     *progress.Loader
	Converter  *convert.Coordinator
	Tokens     identity.TokenSource
	Bank       *game.WordBank
	Standalone bool
	Now        func() time.Time
}

// View is a render snapshot of the controller for UI layers.
type View struct {
	PuzzleDate             string            `json:"puzzle_date"`
	CurrentGuess           string            `json:"current_guess"`
	Guesses                []game.GradedMove `json:"guesses"`
	Status                 game.Status       `json:"status"`
	IsSubmitting           bool              `json:"is_submitting"`
	CompletedDuringSession bool              `json:"completed_during_session"`
	KeyStates              map[string]string `json:"key_states"`
	LastError              string            `json:"last_error,omitempty"`
	Hint                   string            `json:"hint,omitempty"`
}

// Controller serializes all access to the reducer state. The reducer stays
// pure; the controller owns the side effects around it.
type Controller struct {
	opts Options

	mu        sync.Mutex
	state     game.State
	lastError string
}

func NewController(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{opts: opts}
	c.state = game.NewState(game.Today(opts.Now()))
	return c
}

// Start boots the controller for today's puzzle: picks a local answer in
// standalone mode, otherwise reconciles saved server progress and, if the
// user is already authenticated, triggers the one-shot session conversion.
func (c *Controller) Start(ctx context.Context) {
	date := game.Today(c.opts.Now())
	c.resetTo(date)

	if c.opts.Standalone {
		return
	}

	if c.opts.Tokens != nil && c.opts.Converter != nil && c.opts.Tokens.Authenticated() {
		c.opts.Converter.OnAuthenticated(ctx)
	}

	if c.opts.Loader != nil {
		c.opts.Loader.Load(ctx, date, func(snap game.Snapshot) {
			c.dispatch(game.LoadGameProgress{Server: snap})
		})
	}
}

// SetPuzzleDate switches to another day's puzzle, discarding any in-flight
// load results for the previous date.
func (c *Controller) SetPuzzleDate(ctx context.Context, date string) {
	if c.opts.Loader != nil {
		c.opts.Loader.Invalidate()
	}
	c.resetTo(date)

	if !c.opts.Standalone && c.opts.Loader != nil {
		c.opts.Loader.Load(ctx, date, func(snap game.Snapshot) {
			c.dispatch(game.LoadGameProgress{Server: snap})
		})
	}
}

// NewGame restarts today's puzzle (standalone mode picks a new answer).
func (c *Controller) NewGame(ctx context.Context) {
	c.SetPuzzleDate(ctx, game.Today(c.opts.Now()))
}

func (c *Controller) resetTo(date string) {
	answer := ""
	if c.opts.Standalone && c.opts.Bank != nil {
		picked, err := c.opts.Bank.RandomAnswer()
		if err != nil {
			log.Printf("[WARN] Could not pick a standalone answer: %v", err)
		} else {
			answer = picked
		}
	}

	c.mu.Lock()
	c.state = game.Reduce(c.state, game.NewGame{PuzzleDate: date, Answer: answer})
	c.lastError = ""
	c.mu.Unlock()
}

// Press feeds one typed letter into the guess buffer.
func (c *Controller) Press(letter rune) {
	c.dispatch(game.AddLetter{Letter: letter})
}

// Backspace removes the last buffered letter.
func (c *Controller) Backspace() {
	c.dispatch(game.RemoveLetter{})
}

// TypeWord replaces the buffer with the given word, for UIs that submit
// whole words instead of key events.
func (c *Controller) TypeWord(word string) {
	c.mu.Lock()
	for len(c.state.CurrentGuess) > 0 && c.state.Status == game.StatusPlaying {
		c.state = game.Reduce(c.state, game.RemoveLetter{})
	}
	for _, r := range word {
		c.state = game.Reduce(c.state, game.AddLetter{Letter: r})
	}
	c.mu.Unlock()
}

// Submit sends the buffered guess. It is a silent no-op unless the buffer
// holds exactly five letters, the game is playing, and no submission is in
// flight. Submission failures are captured as a transient error message and
// leave the buffer editable; they never change game status.
func (c *Controller) Submit(ctx context.Context) {
	c.mu.Lock()
	before := c.state
	c.state = game.Reduce(c.state, game.SubmitGuessStart{})
	started := c.state.IsSubmitting && !before.IsSubmitting
	guess := c.state.CurrentGuess
	date := c.state.PuzzleDate
	c.mu.Unlock()

	if !started {
		return
	}

	if c.opts.Standalone {
		c.submitStandalone(guess)
		return
	}

	state, err := c.opts.API.SubmitGuess(ctx, date, guess)
	if err != nil {
		message := "Something went wrong submitting your guess."
		if apiErr, ok := scorekeeper.AsAPIError(err); ok {
			message = apiErr.UserMessage
		}
		log.Printf("[WARN] Guess submission failed for %s: %v", date, err)
		c.mu.Lock()
		c.state = game.Reduce(c.state, game.SubmitGuessError{})
		c.lastError = message
		c.mu.Unlock()
		return
	}

	c.dispatch(game.SubmitGuessSuccess{Server: state.Snapshot()})
}

// submitStandalone grades the guess locally against the session answer.
func (c *Controller) submitStandalone(guess string) {
	if c.opts.Bank != nil && !c.opts.Bank.Contains(guess) {
		c.mu.Lock()
		c.state = game.Reduce(c.state, game.SubmitGuessError{})
		c.lastError = "Word not recognised."
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	answer := c.state.Answer
	moves := make([]game.GradedMove, len(c.state.Guesses), len(c.state.Guesses)+1)
	copy(moves, c.state.Guesses)
	c.mu.Unlock()

	moves = append(moves, game.GradeGuess(guess, answer))
	c.dispatch(game.SubmitGuessSuccess{Server: game.Snapshot{
		Won:   guess == answer,
		Moves: moves,
	}})
}

// ClearError dismisses the transient submission error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
}

// Snapshot returns a render view of the current state. Keyboard states are
// derived here, never stored, so they can't diverge from the rows.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	guesses := make([]game.GradedMove, len(c.state.Guesses))
	copy(guesses, c.state.Guesses)

	// Hints exist only in standalone mode, where the answer is local.
	hint := ""
	if c.opts.Standalone && c.opts.Bank != nil {
		hint = c.opts.Bank.Hint(c.state.Answer)
	}

	return View{
		PuzzleDate:             c.state.PuzzleDate,
		CurrentGuess:           c.state.CurrentGuess,
		Guesses:                guesses,
		Status:                 c.state.Status,
		IsSubmitting:           c.state.IsSubmitting,
		CompletedDuringSession: c.state.CompletedDuringSession,
		KeyStates:              game.KeyStates(guesses),
		LastError:              c.lastError,
		Hint:                   hint,
	}
}

func (c *Controller) dispatch(action game.Action) {
	c.mu.Lock()
	c.state = game.Reduce(c.state, action)
	c.mu.Unlock()
}

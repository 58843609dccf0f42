package scorekeeper

import "vortamiko/internal/game"

// GameState is the server-authoritative record of one puzzle. Moves never
// exceed game.MaxGuesses; once Won is true or six moves exist the game is
// terminal and the server rejects further guesses.
type GameState struct {
	GameID   string            `json:"game_id"`
	UserID   string            `json:"user_id"`
	MovesQty int               `json:"moves_qty"`
	Won      bool              `json:"won"`
	Moves    []game.GradedMove `json:"moves"`
}

// Snapshot converts the wire state into the reducer's reconciliation input.
func (g *GameState) Snapshot() game.Snapshot {
	return game.Snapshot{Won: g.Won, Moves: g.Moves}
}

// guessRequest is the POST /guess body.
type guessRequest struct {
	PuzzleDateIsoDay string `json:"puzzle_date_iso_day"`
	WordGuessed      string `json:"word_guessed"`
}

// GameRecord is one entry in the score history.
type GameRecord struct {
	GameID        string            `json:"game_id"`
	PuzzleDate    string            `json:"puzzle_date"`
	GuessesCount  int               `json:"guesses_count"`
	Won           bool              `json:"won"`
	InProgress    bool              `json:"in_progress"`
	GradedGuesses []game.GradedMove `json:"graded_guesses,omitempty"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

// History is the GET /history response.
type History struct {
	Games      []GameRecord `json:"games"`
	TotalGames int          `json:"total_games"`
	GamesWon   int          `json:"games_won"`
}

// convertRequest is the POST /session/convert body.
type convertRequest struct {
	SessionID string `json:"sessionId"`
}

// ConvertResult reports how much anonymous history was merged into the
// authenticated account.
type ConvertResult struct {
	Converted         int `json:"converted"`
	ConflictsResolved int `json:"conflicts_resolved"`
}

// Profile is the user profile resource.
type Profile struct {
	Username    string `json:"username" validate:"omitempty,min=3,max=32"`
	DisplayName string `json:"display_name" validate:"omitempty,max=64"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

// PuzzleEntry is one scheduled word in the game-maker view.
type PuzzleEntry struct {
	PuzzleDate string `json:"puzzle_date"`
	Word       string `json:"word,omitempty"`
}

// PuzzleSchedule is the GET /puzzles response.
type PuzzleSchedule struct {
	Puzzles []PuzzleEntry `json:"puzzles"`
}

// setPuzzleRequest is the PUT /puzzles body.
type setPuzzleRequest struct {
	PuzzleDate string `json:"puzzle_date"`
	Word       string `json:"word"`
}

// Package progress reconciles server-authoritative game state into the
// local reducer on startup and on puzzle-date changes.
package progress

import (
	"context"
	"log"
	"sync/atomic"

	"vortamiko/internal/game"
	"vortamiko/internal/scorekeeper"
)

// GameSource fetches stored server state for a puzzle date; a missing
// record yields (nil, nil).
type GameSource interface {
	GameForDate(ctx context.Context, puzzleDate string) (*scorekeeper.GameState, error)
}

// Loader fetches saved progress and applies it unless the result has gone
// stale. Staleness is generation-based: each Load captures the current
// generation, and Invalidate bumps it when the puzzle date changes or the
// owning view goes away. Responses are discarded, not cancelled.
type Loader struct {
	games GameSource
	gen   atomic.Uint64
}

func NewLoader(games GameSource) *Loader {
	return &Loader{games: games}
}

// Invalidate marks all in-flight loads stale.
func (l *Loader) Invalidate() {
	l.gen.Add(1)
}

// Load fetches saved progress for the date and hands the snapshot to apply.
// Identity resolution happens inside the gateway call, which blocks until
// auth has settled, so the fetch never races an in-flight login restore.
//
// Failure is fail-open: a load error is logged and apply is simply never
// called, leaving the fresh local board playable.
func (l *Loader) Load(ctx context.Context, puzzleDate string, apply func(game.Snapshot)) {
	gen := l.gen.Load()

	state, err := l.games.GameForDate(ctx, puzzleDate)
	if err != nil {
		log.Printf("[WARN] Failed to load saved progress for %s: %v", puzzleDate, err)
		return
	}
	if state == nil {
		return
	}
	if l.gen.Load() != gen {
		log.Printf("[INFO] Discarding stale progress response for %s", puzzleDate)
		return
	}
	apply(state.Snapshot())
}

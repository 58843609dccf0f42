package progress

import (
	"context"
	"errors"
	"testing"

	"vortamiko/internal/game"
	"vortamiko/internal/scorekeeper"
)

// fakeSource returns canned responses and can invalidate the loader
// mid-fetch to simulate a puzzle-date change racing a response.
type fakeSource struct {
	state      *scorekeeper.GameState
	err        error
	onFetch    func()
	fetchCount int
}

func (f *fakeSource) GameForDate(ctx context.Context, puzzleDate string) (*scorekeeper.GameState, error) {
	f.fetchCount++
	if f.onFetch != nil {
		f.onFetch()
	}
	return f.state, f.err
}

func TestLoadAppliesSavedProgress(t *testing.T) {
	source := &fakeSource{state: &scorekeeper.GameState{Won: true, Moves: []game.GradedMove{{}}}}
	loader := NewLoader(source)

	var applied *game.Snapshot
	loader.Load(context.Background(), "2026-02-18", func(snap game.Snapshot) {
		applied = &snap
	})

	if applied == nil {
		t.Fatal("apply should be called for a found record")
	}
	if !applied.Won || len(applied.Moves) != 1 {
		t.Errorf("snapshot = %+v", applied)
	}
}

func TestLoadNoRecordLeavesStateAlone(t *testing.T) {
	loader := NewLoader(&fakeSource{state: nil})

	called := false
	loader.Load(context.Background(), "2026-02-18", func(game.Snapshot) { called = true })
	if called {
		t.Error("apply must not be called when the server has no record")
	}
}

func TestLoadFailsOpenOnError(t *testing.T) {
	loader := NewLoader(&fakeSource{err: errors.New("boom")})

	called := false
	loader.Load(context.Background(), "2026-02-18", func(game.Snapshot) { called = true })
	if called {
		t.Error("apply must not be called on load failure")
	}
}

func TestLoadDiscardsStaleResponse(t *testing.T) {
	loader := NewLoader(nil)
	source := &fakeSource{
		state: &scorekeeper.GameState{Won: true},
		// The date changes while the response is in flight.
		onFetch: loader.Invalidate,
	}
	loader.games = source

	called := false
	loader.Load(context.Background(), "2026-02-18", func(game.Snapshot) { called = true })
	if called {
		t.Error("apply must not be called for a stale response")
	}
	if source.fetchCount != 1 {
		t.Errorf("fetchCount = %d, want 1", source.fetchCount)
	}
}

package convert

import (
	"context"
	"errors"
	"testing"

	"vortamiko/internal/identity"
	"vortamiko/internal/scorekeeper"
)

type fakeMerger struct {
	calls   int
	lastSID string
	lastTok string
	result  *scorekeeper.ConvertResult
	err     error
}

func (f *fakeMerger) ConvertSession(ctx context.Context, sessionID, token string) (*scorekeeper.ConvertResult, error) {
	f.calls++
	f.lastSID = sessionID
	f.lastTok = token
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &scorekeeper.ConvertResult{}, nil
}

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (f *fakeTokens) Authenticated() bool { return true }
func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	return f.token, f.err
}

func TestConversionRunsOncePerAuthSession(t *testing.T) {
	merger := &fakeMerger{result: &scorekeeper.ConvertResult{Converted: 2}}
	sessions := identity.NewMemStore("anon-session-xyz")
	c := NewCoordinator(merger, sessions, &fakeTokens{token: "tok"})

	c.OnAuthenticated(context.Background())
	c.OnAuthenticated(context.Background())
	c.OnAuthenticated(context.Background())

	if merger.calls != 1 {
		t.Errorf("ConvertSession called %d times, want 1", merger.calls)
	}
	if merger.lastSID != "anon-session-xyz" || merger.lastTok != "tok" {
		t.Errorf("merge args = %q, %q", merger.lastSID, merger.lastTok)
	}
	if _, ok := sessions.Get(); ok {
		t.Error("anonymous session should be cleared after conversion")
	}
}

func TestConversionClearsSessionEvenOnMergeFailure(t *testing.T) {
	merger := &fakeMerger{err: errors.New("server exploded")}
	sessions := identity.NewMemStore("anon-session-xyz")
	c := NewCoordinator(merger, sessions, &fakeTokens{token: "tok"})

	c.OnAuthenticated(context.Background())

	if merger.calls != 1 {
		t.Errorf("ConvertSession called %d times, want 1", merger.calls)
	}
	if _, ok := sessions.Get(); ok {
		t.Error("anonymous session must be cleared even when the merge fails")
	}
}

func TestConversionNoopWithoutAnonymousSession(t *testing.T) {
	merger := &fakeMerger{}
	c := NewCoordinator(merger, identity.NewMemStore(""), &fakeTokens{token: "tok"})

	c.OnAuthenticated(context.Background())

	if merger.calls != 0 {
		t.Errorf("ConvertSession called %d times, want 0", merger.calls)
	}
}

func TestConversionClearsSessionWhenTokenUnavailable(t *testing.T) {
	merger := &fakeMerger{}
	sessions := identity.NewMemStore("anon-session-xyz")
	c := NewCoordinator(merger, sessions, &fakeTokens{err: identity.ErrNotAuthenticated})

	c.OnAuthenticated(context.Background())

	if merger.calls != 0 {
		t.Error("merge should be skipped without a token")
	}
	if _, ok := sessions.Get(); ok {
		t.Error("cleanup still runs when no token could be obtained")
	}
}

func TestResetReArmsCoordinator(t *testing.T) {
	merger := &fakeMerger{}
	sessions := identity.NewMemStore("first-session-id")
	c := NewCoordinator(merger, sessions, &fakeTokens{token: "tok"})

	c.OnAuthenticated(context.Background())
	if merger.calls != 1 {
		t.Fatalf("calls = %d, want 1", merger.calls)
	}

	// Logout, play anonymously again, log back in.
	c.Reset()
	_ = sessions.Put("second-session-id")
	c.OnAuthenticated(context.Background())

	if merger.calls != 2 {
		t.Errorf("calls = %d, want 2 after reset", merger.calls)
	}
	if merger.lastSID != "second-session-id" {
		t.Errorf("lastSID = %q", merger.lastSID)
	}
}

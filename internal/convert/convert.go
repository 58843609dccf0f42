// Package convert merges anonymous-session game history into a freshly
// authenticated account, exactly once per authentication session.
package convert

import (
	"context"
	"log"

	"vortamiko/internal/identity"
	"vortamiko/internal/scorekeeper"
)

// Merger is the slice of the gateway the coordinator needs.
type Merger interface {
	ConvertSession(ctx context.Context, sessionID, token string) (*scorekeeper.ConvertResult, error)
}

// Coordinator runs the one-shot anonymous-to-authenticated merge. The guard
// is scoped to the authentication session: it resets only when Reset is
// called after a logout, never on repeated triggers while authenticated.
type Coordinator struct {
	api      Merger
	sessions identity.SessionStore
	tokens   identity.TokenSource

	triggered chan struct{}
}

func NewCoordinator(api Merger, sessions identity.SessionStore, tokens identity.TokenSource) *Coordinator {
	return &Coordinator{
		api:       api,
		sessions:  sessions,
		tokens:    tokens,
		triggered: make(chan struct{}, 1),
	}
}

// OnAuthenticated is called on every observation of an authenticated user;
// only the first call per auth session does anything. If an anonymous
// session exists, its history is merged into the account and the session
// is cleared whether or not the merge succeeded — a failed merge must not
// leave a dangling session retried forever. Conversion is best-effort:
// errors are logged, never surfaced.
func (c *Coordinator) OnAuthenticated(ctx context.Context) {
	select {
	case c.triggered <- struct{}{}:
	default:
		return
	}

	sessionID, ok := c.sessions.Get()
	if !ok {
		return
	}

	c.merge(ctx, sessionID)

	if err := c.sessions.Clear(); err != nil {
		log.Printf("[WARN] Failed to clear anonymous session after conversion: %v", err)
	}
}

func (c *Coordinator) merge(ctx context.Context, sessionID string) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		log.Printf("[WARN] Session conversion skipped, no token: %v", err)
		return
	}

	result, err := c.api.ConvertSession(ctx, sessionID, token)
	if err != nil {
		log.Printf("[WARN] Session conversion failed: %v", err)
		return
	}
	log.Printf("[INFO] Converted anonymous session: %d games merged, %d conflicts resolved",
		result.Converted, result.ConflictsResolved)
}

// Reset re-arms the coordinator for the next authentication session, after
// a logout.
func (c *Coordinator) Reset() {
	select {
	case <-c.triggered:
	default:
	}
}

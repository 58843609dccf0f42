// Package identity resolves the actor for every outbound scorekeeper call:
// either an authenticated user carrying a bearer token or an anonymous
// player tracked by an opaque session identifier. Exactly one of the two is
// ever active for a request.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the fixed cookie carrying the anonymous session
// identifier, shared between the serve front and outbound API calls.
const SessionCookieName = "session_id"

// SessionTTL is how long an anonymous session identifier stays valid.
const SessionTTL = 7 * 24 * time.Hour

// minSessionIDLength rejects truncated or hand-edited identifiers.
const minSessionIDLength = 10

// Kind discriminates the two identity variants.
type Kind int

const (
	Anonymous Kind = iota
	Authenticated
)

// Identity is the resolved actor for one request. SessionID is set only for
// Anonymous, Token only for Authenticated; never both.
type Identity struct {
	Kind      Kind
	SessionID string
	Token     string
}

// SessionStore owns the anonymous session identifier. The resolver is the
// only writer; conversion cleanup goes through Clear.
type SessionStore interface {
	// Get returns the current session ID, or false if none is stored or
	// the stored one has expired.
	Get() (string, bool)
	Put(sessionID string) error
	Clear() error
}

// TokenSource supplies bearer tokens for the authenticated variant.
// Ready is closed once the source knows whether a user is logged in;
// resolution blocks on it so the first progress fetch never races an
// in-flight login restore.
type TokenSource interface {
	Ready() <-chan struct{}
	Authenticated() bool
	// Token returns a fresh bearer token, refreshing a stale cached one
	// transparently.
	Token(ctx context.Context) (string, error)
}

// ErrNotAuthenticated is returned by token sources that have no usable
// credentials.
var ErrNotAuthenticated = errors.New("not authenticated")

// Resolver produces exactly one Identity per request, preferring the
// authenticated variant. While a user is authenticated no anonymous session
// is created or sent.
type Resolver struct {
	sessions SessionStore
	tokens   TokenSource
}

func NewResolver(sessions SessionStore, tokens TokenSource) *Resolver {
	return &Resolver{sessions: sessions, tokens: tokens}
}

// Resolve waits for the token source to settle, then returns the active
// identity. For anonymous actors it lazily creates and persists a session
// identifier so the first identified request already carries one.
func (r *Resolver) Resolve(ctx context.Context) (Identity, error) {
	if r.tokens != nil {
		select {
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		case <-r.tokens.Ready():
		}

		if r.tokens.Authenticated() {
			token, err := r.tokens.Token(ctx)
			if err != nil {
				return Identity{}, err
			}
			return Identity{Kind: Authenticated, Token: token}, nil
		}
	}

	sessionID, ok := r.sessions.Get()
	if !ok || len(sessionID) < minSessionIDLength {
		sessionID = uuid.NewString()
		if err := r.sessions.Put(sessionID); err != nil {
			return Identity{}, err
		}
	}
	return Identity{Kind: Anonymous, SessionID: sessionID}, nil
}

// Sessions exposes the store for the conversion coordinator, which needs to
// read and clear the anonymous session after a merge.
func (r *Resolver) Sessions() SessionStore {
	return r.sessions
}

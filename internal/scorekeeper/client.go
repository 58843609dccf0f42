// Package scorekeeper is the typed gateway to the remote scorekeeper API.
// All calls resolve their identity first, carry exactly one auth scheme,
// and normalize failures into APIError.
package scorekeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vortamiko/internal/identity"
)

const (
	defaultBaseURL     = "https://api.vortamiko.net"
	defaultHTTPTimeout = 15 * time.Second
	tracerName         = "vortamiko/scorekeeper"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// IdentitySource yields the actor for each outbound request.
type IdentitySource interface {
	Resolve(ctx context.Context) (identity.Identity, error)
}

// Config controls how the client reaches the scorekeeper service.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client is the scorekeeper API gateway.
type Client struct {
	baseURL    string
	httpClient httpDoer
	identities IdentitySource
	tracer     trace.Tracer
}

// NewClient constructs a gateway with the provided configuration.
func NewClient(cfg Config, identities IdentitySource) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		httpClient: resolveHTTPClient(cfg.HTTPClient),
		identities: identities,
		tracer:     otel.Tracer(tracerName),
	}
}

func resolveHTTPClient(client *http.Client) httpDoer {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func normalizeBaseURL(raw string) string {
	if raw == "" {
		raw = defaultBaseURL
	}
	return strings.TrimSuffix(raw, "/")
}

// SubmitGuess posts one completed guess for the given puzzle date and
// returns the server's graded state.
func (c *Client) SubmitGuess(ctx context.Context, puzzleDate, word string) (*GameState, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.SubmitGuess", attribute.String("puzzle.date", puzzleDate))

	body := guessRequest{PuzzleDateIsoDay: puzzleDate, WordGuessed: word}
	var state GameState
	err := c.call(ctx, http.MethodPost, "/guess", body, &state, nil)
	end(err)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GameForDate fetches the stored game for a puzzle date. A 404 means "no
// record" and yields (nil, nil), not an error.
func (c *Client) GameForDate(ctx context.Context, puzzleDate string) (*GameState, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.GameForDate", attribute.String("puzzle.date", puzzleDate))

	var state GameState
	found := true
	err := c.call(ctx, http.MethodGet, "/game/"+url.PathEscape(puzzleDate), nil, &state, map[int]func() error{
		http.StatusNotFound: func() error { found = false; return nil },
	})
	end(err)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &state, nil
}

// History fetches the caller's score history.
func (c *Client) History(ctx context.Context) (*History, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.History")

	var history History
	err := c.call(ctx, http.MethodGet, "/history", nil, &history, nil)
	end(err)
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// ConvertSession merges the anonymous session's game history into the
// authenticated account. The bearer token is passed explicitly because the
// call happens mid-transition, before the resolver reports authenticated
// identity everywhere.
func (c *Client) ConvertSession(ctx context.Context, sessionID, token string) (*ConvertResult, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.ConvertSession")

	req, err := c.newRequest(ctx, http.MethodPost, "/session/convert", convertRequest{SessionID: sessionID})
	if err != nil {
		end(err)
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var result ConvertResult
	err = c.do(req, &result, nil)
	end(err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Profile fetches the authenticated user's profile; 404 yields (nil, nil).
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.Profile")

	var profile Profile
	found := true
	err := c.call(ctx, http.MethodGet, "/profile", nil, &profile, map[int]func() error{
		http.StatusNotFound: func() error { found = false; return nil },
	})
	end(err)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &profile, nil
}

// UpdateProfile replaces the authenticated user's profile.
func (c *Client) UpdateProfile(ctx context.Context, profile Profile) (*Profile, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.UpdateProfile")

	var updated Profile
	err := c.call(ctx, http.MethodPut, "/profile", profile, &updated, nil)
	end(err)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// UploadAvatar uploads an avatar image as multipart form data.
func (c *Client) UploadAvatar(ctx context.Context, filename string, content io.Reader) (*Profile, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.UploadAvatar")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("avatar", filename)
	if err != nil {
		end(err)
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		end(err)
		return nil, err
	}
	if err := writer.Close(); err != nil {
		end(err)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/profile/avatar", &buf)
	if err != nil {
		end(err)
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := c.authorize(ctx, req); err != nil {
		end(err)
		return nil, err
	}

	var profile Profile
	err = c.do(req, &profile, nil)
	end(err)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// Puzzles fetches the game-maker puzzle schedule. Admin-only.
func (c *Client) Puzzles(ctx context.Context) (*PuzzleSchedule, error) {
	ctx, end := c.startSpan(ctx, "scorekeeper.Puzzles")

	var schedule PuzzleSchedule
	err := c.call(ctx, http.MethodGet, "/puzzles", nil, &schedule, nil)
	end(err)
	if err != nil {
		return nil, rephraseAdminError(err)
	}
	return &schedule, nil
}

// SetPuzzle schedules the word for a puzzle date. Admin-only; a 404 means
// the word is not in the playable list.
func (c *Client) SetPuzzle(ctx context.Context, puzzleDate, word string) error {
	ctx, end := c.startSpan(ctx, "scorekeeper.SetPuzzle", attribute.String("puzzle.date", puzzleDate))

	err := c.call(ctx, http.MethodPut, "/puzzles", setPuzzleRequest{PuzzleDate: puzzleDate, Word: word}, nil, nil)
	end(err)
	if err == nil {
		return nil
	}
	if apiErr, ok := AsAPIError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		return &APIError{StatusCode: apiErr.StatusCode, UserMessage: "That word is not in the puzzle word list."}
	}
	return rephraseAdminError(err)
}

// rephraseAdminError gives 401/403 on game-maker calls explicit wording,
// since the caller has the domain context for a better message.
func rephraseAdminError(err error) error {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return &APIError{StatusCode: apiErr.StatusCode, UserMessage: "You must be signed in to manage puzzles."}
	case http.StatusForbidden:
		return &APIError{StatusCode: apiErr.StatusCode, UserMessage: "Your account is not allowed to manage puzzles."}
	default:
		return err
	}
}

// call builds an identified request, executes it and decodes the response.
// handlers overrides per-status behavior before generic error mapping.
func (c *Client) call(ctx context.Context, method, path string, body, out any, handlers map[int]func() error) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	return c.do(req, out, handlers)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// authorize attaches exactly one identity scheme: a bearer header for
// authenticated users, the session cookie otherwise. Never both — mixing
// schemes risks inconsistent user attribution on the server.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.identities == nil {
		return nil
	}
	id, err := c.identities.Resolve(ctx)
	if err != nil {
		return err
	}
	switch id.Kind {
	case identity.Authenticated:
		req.Header.Set("Authorization", "Bearer "+id.Token)
	case identity.Anonymous:
		req.AddCookie(&http.Cookie{Name: identity.SessionCookieName, Value: id.SessionID})
	}
	return nil
}

func (c *Client) do(req *http.Request, out any, handlers map[int]func() error) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if handler, ok := handlers[resp.StatusCode]; ok {
		io.Copy(io.Discard, resp.Body)
		return handler()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return normalizeError(resp.StatusCode, body)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{
			StatusCode:  resp.StatusCode,
			UserMessage: fmt.Sprintf("Unexpected response from the scorekeeper service (status %d)", resp.StatusCode),
			cause:       err,
		}
	}
	return nil
}

// startSpan opens a tracing span and returns a closer that records the
// outcome. Telemetry is best-effort and never breaks the call path.
func (c *Client) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if c.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "request failed")
		}
		span.End()
	}
}

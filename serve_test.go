package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"vortamiko/internal/auth"
	"vortamiko/internal/game"
	"vortamiko/internal/identity"
	"vortamiko/internal/play"
	"vortamiko/internal/scorekeeper"
)

func setupTestServer(rps, burst int) (*server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	cfg := &Config{Standalone: true, RateLimitRPS: rps, RateLimitBurst: burst}
	s := &server{
		cfg:        cfg,
		bank:       game.NewWordBank([]game.WordEntry{{Word: "CRANE", Hint: "Bird or construction machine"}}),
		sessions:   make(map[string]*browserSession),
		converted:  make(map[string]bool),
		limiterMap: make(map[string]*rate.Limiter),
		startTime:  time.Now(),
	}

	router := gin.New()
	s.registerRoutes(router)
	return s, router
}

// unsignedBearer builds a token whose expiry claim parses without a
// signature, enough for the cache staleness check.
func unsignedBearer(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp.Unix())))
	return header + "." + claims + "."
}

// setupAuthedServer builds an online-mode server with a signed-in user whose
// cached access token is still fresh.
func setupAuthedServer(t *testing.T, apiURL string) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := auth.NewCache(t.TempDir())
	if err := cache.Save(auth.Credentials{AccessToken: unsignedBearer(t, time.Now().Add(time.Hour))}); err != nil {
		t.Fatalf("seed token cache: %v", err)
	}
	authenticator := auth.NewAuthenticator(auth.Config{}, cache)

	cfg := &Config{APIURL: apiURL, RateLimitRPS: 100, RateLimitBurst: 100}
	sessions := identity.NewFileStore(t.TempDir())
	app := &App{
		cfg:      cfg,
		auth:     authenticator,
		sessions: sessions,
		api:      scorekeeper.NewClient(scorekeeper.Config{BaseURL: apiURL}, identity.NewResolver(sessions, authenticator)),
		shutdown: func(context.Context) error { return nil },
	}

	s := &server{
		app:        app,
		cfg:        cfg,
		sessions:   make(map[string]*browserSession),
		converted:  make(map[string]bool),
		limiterMap: make(map[string]*rate.Limiter),
		startTime:  time.Now(),
	}

	router := gin.New()
	s.registerRoutes(router)
	return s, router
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie was set")
	return nil
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) play.View {
	t.Helper()
	var view play.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return view
}

func TestStateCreatesSessionCookie(t *testing.T) {
	_, router := setupTestServer(100, 100)

	req, _ := http.NewRequest(http.MethodGet, RouteState, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET %s returned %d, want 200", RouteState, w.Code)
	}
	cookie := sessionCookie(t, w)
	if len(cookie.Value) < 10 {
		t.Errorf("session cookie value %q is too short", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}

	view := decodeView(t, w)
	if view.Status != game.StatusPlaying {
		t.Errorf("fresh board status = %v, want playing", view.Status)
	}
}

func TestGuessWinFlow(t *testing.T) {
	_, router := setupTestServer(100, 100)

	req, _ := http.NewRequest(http.MethodGet, RouteState, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	cookie := sessionCookie(t, w)

	req, _ = http.NewRequest(http.MethodPost, RouteGuess, strings.NewReader(`{"word":"CRANE"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	view := decodeView(t, w)
	if view.Status != game.StatusWon {
		t.Errorf("status = %v, want won", view.Status)
	}
	if len(view.Guesses) != 1 {
		t.Errorf("guesses = %d, want 1", len(view.Guesses))
	}
	for _, gl := range view.Guesses[0] {
		if gl.Grade != game.GradeCorrect {
			t.Errorf("grade for %s = %q, want correct", gl.Letter, gl.Grade)
		}
	}
}

func TestKeyAndBackspaceEditBuffer(t *testing.T) {
	_, router := setupTestServer(100, 100)

	req, _ := http.NewRequest(http.MethodGet, RouteState, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	cookie := sessionCookie(t, w)

	req, _ = http.NewRequest(http.MethodPost, RouteKey, strings.NewReader(`{"letter":"C"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if view := decodeView(t, w); view.CurrentGuess != "C" {
		t.Errorf("CurrentGuess = %q, want C", view.CurrentGuess)
	}

	req, _ = http.NewRequest(http.MethodPost, RouteBackspace, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if view := decodeView(t, w); view.CurrentGuess != "" {
		t.Errorf("CurrentGuess = %q after backspace, want empty", view.CurrentGuess)
	}
}

func TestSessionCookieReusesController(t *testing.T) {
	s, router := setupTestServer(100, 100)

	req, _ := http.NewRequest(http.MethodGet, RouteState, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	cookie := sessionCookie(t, w)

	req, _ = http.NewRequest(http.MethodGet, RouteState, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	s.sessionMutex.RLock()
	defer s.sessionMutex.RUnlock()
	if len(s.sessions) != 1 {
		t.Errorf("got %d sessions for one cookie, want 1", len(s.sessions))
	}
}

func TestRateLimitExceeded(t *testing.T) {
	_, router := setupTestServer(1, 1)

	var last int
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodPost, RouteBackspace, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third rapid request returned %d, want 429", last)
	}
}

func TestHistoryUnavailableInStandalone(t *testing.T) {
	_, router := setupTestServer(100, 100)

	req, _ := http.NewRequest(http.MethodGet, RouteHistory, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET %s returned %d, want 200", RouteHistory, w.Code)
	}
	if !strings.Contains(w.Body.String(), "history") {
		t.Errorf("expected an offline-history message, got %s", w.Body.String())
	}
}

// newScorekeeperStub counts conversion calls and records the session ID
// each one carried. Game lookups report no saved record.
func newScorekeeperStub(convertCalls *int32, lastSessionID *atomic.Value) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/session/convert":
			atomic.AddInt32(convertCalls, 1)
			var body struct {
				SessionID string `json:"sessionId"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			lastSessionID.Store(body.SessionID)
			_ = json.NewEncoder(w).Encode(scorekeeper.ConvertResult{Converted: 1})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestAuthenticatedVisitMintsNoSessionCookie(t *testing.T) {
	var convertCalls int32
	var lastSessionID atomic.Value
	stub := newScorekeeperStub(&convertCalls, &lastSessionID)
	defer stub.Close()

	_, router := setupAuthedServer(t, stub.URL)

	req, _ := http.NewRequest(http.MethodGet, RouteState, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET %s returned %d, want 200", RouteState, w.Code)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.SessionCookieName {
			t.Errorf("a session cookie was minted for a signed-in user: %q", c.Value)
		}
	}
	if got := atomic.LoadInt32(&convertCalls); got != 0 {
		t.Errorf("conversion called %d times with no anonymous session, want 0", got)
	}
}

func TestLeftoverCookieConvertedOnceThenExpired(t *testing.T) {
	var convertCalls int32
	var lastSessionID atomic.Value
	stub := newScorekeeperStub(&convertCalls, &lastSessionID)
	defer stub.Close()

	s, router := setupAuthedServer(t, stub.URL)

	cookie := &http.Cookie{Name: identity.SessionCookieName, Value: "anon-session-1234"}
	req, _ := http.NewRequest(http.MethodGet, RouteState, nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := atomic.LoadInt32(&convertCalls); got != 1 {
		t.Fatalf("conversion called %d times, want 1", got)
	}
	if got, _ := lastSessionID.Load().(string); got != "anon-session-1234" {
		t.Errorf("conversion carried session ID %q, want the cookie value", got)
	}

	expired := false
	for _, c := range w.Result().Cookies() {
		if c.Name == identity.SessionCookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("the anonymous session cookie should be expired after conversion")
	}

	// A browser that was idle-evicted, or that raced the expiry, presents
	// the same cookie again; the merge must not repeat.
	s.sessionMutex.Lock()
	s.sessions = make(map[string]*browserSession)
	s.sessionMutex.Unlock()

	req, _ = http.NewRequest(http.MethodGet, RouteState, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := atomic.LoadInt32(&convertCalls); got != 1 {
		t.Errorf("conversion called %d times after session rebuild, want still 1", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := setupTestServer(100, 100)

	req, _ := http.NewRequest(http.MethodGet, RouteHealthz, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET %s returned %d, want 200", RouteHealthz, w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["mode"] != "standalone" {
		t.Errorf("mode = %v, want standalone", body["mode"])
	}
}

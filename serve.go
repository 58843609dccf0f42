package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"

	"vortamiko/internal/convert"
	"vortamiko/internal/game"
	"vortamiko/internal/identity"
	"vortamiko/internal/play"
	"vortamiko/internal/progress"
	"vortamiko/internal/scorekeeper"
)

// sessionIdleTimeout evicts browser sessions whose controller has not been
// touched for this long. The scorekeeper keeps the durable state; eviction
// only drops the in-memory board.
const sessionIdleTimeout = 2 * time.Hour

// authSessionKey keys the shared controller for authenticated browsers,
// which carry a bearer token instead of a session cookie. Anonymous keys
// are uuids, so no collision is possible.
const authSessionKey = "authenticated-user"

// browserSession is the per-cookie state of the serve front: a controller
// plus the gateway bound to that browser's anonymous session.
type browserSession struct {
	controller *play.Controller
	api        *scorekeeper.Client
	lastAccess time.Time
}

// server is the local web front: it renders game state as JSON for a
// browser UI and maps each browser session cookie onto its own controller.
type server struct {
	app  *App
	cfg  *Config
	bank *game.WordBank

	sessionMutex sync.RWMutex
	sessions     map[string]*browserSession

	convertMutex sync.Mutex
	converted    map[string]bool

	limiterMutex sync.Mutex
	limiterMap   map[string]*rate.Limiter

	startTime time.Time
}

func newServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the browser game front on a local port.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServe(cmd.Context(), app, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.Bind, "bind", "b", "127.0.0.1", "address to bind to (env: VORTAMIKO_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: VORTAMIKO_PORT)")
	fs.BoolVar(&cfg.Production, "production", false, "production cookie and cache behavior (env: VORTAMIKO_PRODUCTION)")
	fs.StringVar(&cfg.CookieDomain, "cookie-domain", "", "parent domain to scope the session cookie to (env: VORTAMIKO_COOKIE_DOMAIN)")
	fs.IntVar(&cfg.RateLimitRPS, "rate-limit-rps", 5, "per-client requests per second (env: VORTAMIKO_RATE_LIMIT_RPS)")
	fs.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", 10, "per-client burst allowance (env: VORTAMIKO_RATE_LIMIT_BURST)")
	fs.StringVar(&cfg.StaticDir, "static-dir", "static", "directory of UI assets to serve (env: VORTAMIKO_STATIC_DIR)")
	fs.DurationVar(&cfg.StaticCacheAge, "static-cache-age", 5*time.Minute, "cache lifetime for static assets (env: VORTAMIKO_STATIC_CACHE_AGE)")
	fs.StringVar(&cfg.WordsFile, "words-file", "data/words.json", "word list for standalone play (env: VORTAMIKO_WORDS_FILE)")
	fs.BoolVar(&cfg.Standalone, "standalone", false, "play offline against the local word list (env: VORTAMIKO_STANDALONE)")

	return cmd
}

func runServe(ctx context.Context, app *App, cfg *Config) error {
	logInfo("Starting vortamiko in %s mode", map[bool]string{true: "production", false: "development"}[cfg.Production])

	s := &server{
		app:        app,
		cfg:        cfg,
		sessions:   make(map[string]*browserSession),
		converted:  make(map[string]bool),
		limiterMap: make(map[string]*rate.Limiter),
		startTime:  time.Now(),
	}

	if cfg.Standalone {
		bank, err := game.LoadWordBank(cfg.WordsFile)
		if err != nil {
			return fmt.Errorf("load word list: %w", err)
		}
		logInfo("Loaded %d words for standalone play", bank.Size())
		s.bank = bank
	}

	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{"/static/fonts"})))
	router.Use(requestIDMiddleware())

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(func(c *gin.Context) {
		s.applyCacheHeaders(c)
	})

	if dirExists(cfg.StaticDir) {
		logInfo("Serving UI assets from %s", cfg.StaticDir)
		router.Static("/static", cfg.StaticDir)
		router.StaticFile("/", cfg.StaticDir+"/index.html")
	}

	s.registerRoutes(router)

	go s.evictIdleSessions(ctx)

	return s.startServer(router)
}

func (s *server) registerRoutes(router *gin.Engine) {
	router.GET(RouteState, s.stateHandler)
	router.POST(RouteKey, s.rateLimitMiddleware(), s.keyHandler)
	router.POST(RouteBackspace, s.rateLimitMiddleware(), s.backspaceHandler)
	router.POST(RouteGuess, s.rateLimitMiddleware(), s.guessHandler)
	router.POST(RouteNewGame, s.rateLimitMiddleware(), s.newGameHandler)
	router.GET(RouteHistory, s.historyHandler)
	router.GET(RouteProfile, s.profileHandler)
	router.GET(RouteHealthz, s.healthHandler)
}

func (s *server) startServer(router *gin.Engine) error {
	srv := &http.Server{
		Addr:              s.cfg.Bind + ":" + strconv.Itoa(s.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		logInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
	return nil
}

func (s *server) applyCacheHeaders(c *gin.Context) {
	if s.cfg.Production && strings.HasPrefix(c.Request.URL.Path, "/static/") {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(s.cfg.StaticCacheAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}

// authenticated reports whether the serve process has a signed-in user.
// Standalone mode never does.
func (s *server) authenticated() bool {
	return !s.cfg.Standalone && s.app != nil && s.app.auth.Authenticated()
}

// getOrCreateSession returns the browser's anonymous session ID, minting a
// cookie when none exists. Only anonymous browsers ever reach this; a
// signed-in user must not have an anonymous session created. Production
// cookies are SameSite=None and Secure so the UI can live on a sibling
// subdomain of the API; development stays on Lax over plain HTTP.
func (s *server) getOrCreateSession(c *gin.Context) string {
	sessionID, err := c.Cookie(identity.SessionCookieName)
	if err == nil && len(sessionID) >= 10 {
		return sessionID
	}

	sessionID = uuid.NewString()
	s.setSessionCookie(c, sessionID, int(identity.SessionTTL.Seconds()))
	logInfo("Created new browser session: %s", sessionID)
	return sessionID
}

func (s *server) setSessionCookie(c *gin.Context, value string, maxAge int) {
	if s.cfg.Production {
		c.SetSameSite(http.SameSiteNoneMode)
		c.SetCookie(identity.SessionCookieName, value, maxAge, "/", s.cfg.CookieDomain, true, true)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(identity.SessionCookieName, value, maxAge, "/", "", false, true)
	}
}

// convertCookieSession folds a leftover anonymous session cookie into the
// signed-in account, then expires the cookie so the merge can never
// retrigger from a surviving copy after an eviction or restart. The
// in-memory guard covers requests that still race in before the browser
// drops the expired cookie.
func (s *server) convertCookieSession(c *gin.Context) {
	cookieID, err := c.Cookie(identity.SessionCookieName)
	if err != nil || len(cookieID) < 10 {
		return
	}

	s.convertMutex.Lock()
	seen := s.converted[cookieID]
	s.converted[cookieID] = true
	s.convertMutex.Unlock()

	if !seen {
		store := identity.NewMemStore(cookieID)
		convert.NewCoordinator(s.app.api, store, s.app.auth).OnAuthenticated(c.Request.Context())
	}
	s.setSessionCookie(c, "", -1)
}

// sessionFor returns the controller for the request. Anonymous browsers are
// keyed by their session cookie; authenticated ones share the account
// controller and never get an identity cookie minted.
func (s *server) sessionFor(c *gin.Context) *browserSession {
	var sessionID string
	if s.authenticated() {
		sessionID = authSessionKey
		s.convertCookieSession(c)
	} else {
		sessionID = s.getOrCreateSession(c)
	}

	s.sessionMutex.RLock()
	sess, exists := s.sessions[sessionID]
	s.sessionMutex.RUnlock()
	if exists {
		s.sessionMutex.Lock()
		sess.lastAccess = time.Now()
		s.sessionMutex.Unlock()
		return sess
	}

	sess = s.newBrowserSession(c.Request.Context(), sessionID)

	s.sessionMutex.Lock()
	if existing, ok := s.sessions[sessionID]; ok {
		sess = existing
	} else {
		s.sessions[sessionID] = sess
	}
	sess.lastAccess = time.Now()
	s.sessionMutex.Unlock()
	return sess
}

func (s *server) newBrowserSession(ctx context.Context, sessionID string) *browserSession {
	if s.cfg.Standalone {
		controller := play.NewController(play.Options{Standalone: true, Bank: s.bank})
		controller.Start(ctx)
		return &browserSession{controller: controller}
	}

	// The browser cookie is the durable copy of an anonymous session ID;
	// the store only carries it into outbound scorekeeper calls. The
	// authenticated session carries no session ID at all, its resolver
	// attaches the bearer token instead.
	seed := sessionID
	if sessionID == authSessionKey {
		seed = ""
	}
	store := identity.NewMemStore(seed)
	resolver := identity.NewResolver(store, s.app.auth)
	api := scorekeeper.NewClient(scorekeeper.Config{BaseURL: s.cfg.APIURL}, resolver)

	controller := play.NewController(play.Options{
		API:       api,
		Loader:    progress.NewLoader(api),
		Converter: convert.NewCoordinator(api, store, s.app.auth),
		Tokens:    s.app.auth,
	})
	controller.Start(ctx)
	return &browserSession{controller: controller, api: api}
}

// evictIdleSessions drops controllers that have been idle past the timeout.
func (s *server) evictIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-sessionIdleTimeout)
		s.sessionMutex.Lock()
		for id, sess := range s.sessions {
			if sess.lastAccess.Before(cutoff) {
				delete(s.sessions, id)
				logInfo("Evicted idle browser session: %s", id)
			}
		}
		s.sessionMutex.Unlock()
	}
}

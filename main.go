package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vortamiko/internal/auth"
	"vortamiko/internal/identity"
	"vortamiko/internal/scorekeeper"
	"vortamiko/internal/telemetry"
)

const releaseVersion = "0.4.1"

// App wires the shared client stack: token source, session store, identity
// resolver and the scorekeeper gateway. Every subcommand builds one.
type App struct {
	cfg      *Config
	auth     *auth.Authenticator
	sessions identity.SessionStore
	api      *scorekeeper.Client
	shutdown func(context.Context) error
}

func newApp(ctx context.Context, cfg *Config) (*App, error) {
	if err := cfg.validateConfig(); err != nil {
		return nil, err
	}

	stateDir := cfg.stateDir()
	cache := auth.NewCache(stateDir)
	authenticator := auth.NewAuthenticator(auth.Config{
		Domain:   cfg.Auth0Domain,
		ClientID: cfg.Auth0ClientID,
		Audience: cfg.Auth0Audience,
	}, cache)

	sessions := identity.NewFileStore(stateDir)
	resolver := identity.NewResolver(sessions, authenticator)
	api := scorekeeper.NewClient(scorekeeper.Config{BaseURL: cfg.APIURL}, resolver)

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.TraceEnabled,
		ServiceName:  "vortamiko",
		OtlpEndpoint: cfg.TraceEndpoint,
		OtlpInsecure: cfg.TraceInsecure,
	})
	if err != nil {
		logWarn("Tracing setup failed, continuing without traces: %v", err)
		shutdown = func(context.Context) error { return nil }
	}

	return &App{
		cfg:      cfg,
		auth:     authenticator,
		sessions: sessions,
		api:      api,
		shutdown: shutdown,
	}, nil
}

// Close flushes telemetry. Safe to call on a partially started app.
func (app *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.shutdown(ctx); err != nil {
		logWarn("Telemetry shutdown: %v", err)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vortamiko",
		Short:   "A Wordle-style daily word game client for the vortamiko scorekeeper.",
		Version: releaseVersion,
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.APIURL, "api-url", "", "scorekeeper API base URL (env: VORTAMIKO_API_URL)")
	pfs.StringVar(&cfg.Auth0Domain, "auth0-domain", "", "Auth0 tenant domain (env: VORTAMIKO_AUTH0_DOMAIN)")
	pfs.StringVar(&cfg.Auth0ClientID, "auth0-client-id", "", "Auth0 application client ID (env: VORTAMIKO_AUTH0_CLIENT_ID)")
	pfs.StringVar(&cfg.Auth0Audience, "auth0-audience", "", "Auth0 API audience (env: VORTAMIKO_AUTH0_AUDIENCE)")
	pfs.StringVar(&cfg.StateDir, "state-dir", "", "directory for tokens and session state (env: VORTAMIKO_STATE_DIR)")
	pfs.BoolVar(&cfg.TraceEnabled, "trace", false, "enable OpenTelemetry tracing (env: VORTAMIKO_TRACE)")
	pfs.StringVar(&cfg.TraceEndpoint, "trace-endpoint", "", "OTLP HTTP endpoint for traces (env: VORTAMIKO_TRACE_ENDPOINT)")
	pfs.BoolVar(&cfg.TraceInsecure, "trace-insecure", false, "send traces without TLS (env: VORTAMIKO_TRACE_INSECURE)")

	cmd.AddCommand(
		newServeCmd(cfg),
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newPlayCmd(cfg),
		newHistoryCmd(cfg),
		newProfileCmd(cfg),
		newPuzzleCmd(cfg),
	)

	bindFlags(cmd)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("vortamiko v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}

func main() {
	_ = godotenv.Load()

	cfg := &Config{}
	cobra.CheckErr(newRootCmd(cfg).Execute())
}

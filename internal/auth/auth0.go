package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vortamiko/internal/identity"
)

const defaultHTTPTimeout = 15 * time.Second

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config identifies the Auth0 tenant and application.
type Config struct {
	Domain     string
	ClientID   string
	Audience   string
	Scopes     []string
	HTTPClient *http.Client
}

// Authenticator implements identity.TokenSource on top of the disk cache,
// refreshing stale access tokens with the refresh-token grant and running
// the device-authorization flow for interactive logins.
type Authenticator struct {
	cfg        Config
	cache      *Cache
	httpClient httpDoer
	now        func() time.Time

	mu    sync.Mutex
	creds *Credentials
	ready chan struct{}
}

func NewAuthenticator(cfg Config, cache *Cache) *Authenticator {
	client := httpDoer(cfg.HTTPClient)
	if cfg.HTTPClient == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	a := &Authenticator{
		cfg:        cfg,
		cache:      cache,
		httpClient: client,
		now:        time.Now,
		creds:      cache.Load(),
		ready:      make(chan struct{}),
	}
	// The cache read is synchronous, so the source settles immediately.
	close(a.ready)
	return a
}

// Ready reports when the authenticator knows whether a user is logged in.
func (a *Authenticator) Ready() <-chan struct{} {
	return a.ready
}

// Authenticated reports whether stored credentials exist. They may still be
// stale; Token refreshes them on demand.
func (a *Authenticator) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creds != nil
}

// Token returns a fresh access token, refreshing the cached one if it is
// stale. Returns identity.ErrNotAuthenticated when no user is logged in.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.creds == nil {
		return "", identity.ErrNotAuthenticated
	}
	if !a.creds.Stale(a.now()) {
		return a.creds.AccessToken, nil
	}
	if a.creds.RefreshToken == "" {
		return "", fmt.Errorf("access token expired and no refresh token is stored: %w", identity.ErrNotAuthenticated)
	}

	creds, err := a.refresh(ctx, a.creds.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	a.creds = creds
	if err := a.cache.Save(*creds); err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// Logout drops credentials from memory and disk.
func (a *Authenticator) Logout() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = nil
	return a.cache.Clear()
}

// tokenResponse is the Auth0 /oauth/token success shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// tokenError is the Auth0 /oauth/token failure shape.
type tokenError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// DeviceCode is the pending device-authorization grant shown to the user.
type DeviceCode struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// StartDeviceLogin requests a device code. The caller shows UserCode and
// the verification URI to the user, then polls WaitForDeviceLogin.
func (a *Authenticator) StartDeviceLogin(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {a.cfg.ClientID},
		"scope":     {strings.Join(a.scopes(), " ")},
	}
	if a.cfg.Audience != "" {
		form.Set("audience", a.cfg.Audience)
	}

	var code DeviceCode
	if err := a.postForm(ctx, "/oauth/device/code", form, &code); err != nil {
		return nil, err
	}
	if code.Interval <= 0 {
		code.Interval = 5
	}
	return &code, nil
}

// WaitForDeviceLogin polls the token endpoint until the user approves the
// device, the code expires, or the context is cancelled. On success the
// credentials are cached and the authenticator becomes authenticated.
func (a *Authenticator) WaitForDeviceLogin(ctx context.Context, code *DeviceCode) error {
	interval := time.Duration(code.Interval) * time.Second
	deadline := a.now().Add(time.Duration(code.ExpiresIn) * time.Second)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if a.now().After(deadline) {
			return fmt.Errorf("device login expired before approval")
		}

		form := url.Values{
			"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
			"device_code": {code.DeviceCode},
			"client_id":   {a.cfg.ClientID},
		}
		var token tokenResponse
		err := a.postForm(ctx, "/oauth/token", form, &token)
		if err == nil {
			return a.adopt(token)
		}

		var pending *pendingError
		if !errors.As(err, &pending) {
			return err
		}
		if pending.slowDown {
			interval += 5 * time.Second
		}
	}
}

// adopt stores freshly issued tokens in memory and on disk.
func (a *Authenticator) adopt(token tokenResponse) error {
	creds := Credentials{
		AccessToken:  token.AccessToken,
		IDToken:      token.IDToken,
		RefreshToken: token.RefreshToken,
	}
	a.mu.Lock()
	a.creds = &creds
	a.mu.Unlock()
	return a.cache.Save(creds)
}

func (a *Authenticator) refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {a.cfg.ClientID},
		"refresh_token": {refreshToken},
	}
	var token tokenResponse
	if err := a.postForm(ctx, "/oauth/token", form, &token); err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		// Auth0 rotates refresh tokens only when configured to; keep the
		// old one if no replacement was issued.
		token.RefreshToken = refreshToken
	}
	return &Credentials{
		AccessToken:  token.AccessToken,
		IDToken:      token.IDToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// pendingError marks an authorization_pending/slow_down poll response.
type pendingError struct {
	code     string
	slowDown bool
}

func (e *pendingError) Error() string {
	return "device login pending: " + e.code
}

func (a *Authenticator) scopes() []string {
	if len(a.cfg.Scopes) > 0 {
		return a.cfg.Scopes
	}
	return []string{"openid", "profile", "offline_access"}
}

func (a *Authenticator) postForm(ctx context.Context, path string, form url.Values, out any) error {
	endpoint := "https://" + a.cfg.Domain + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var terr tokenError
		if json.Unmarshal(body, &terr) == nil {
			switch terr.Code {
			case "authorization_pending":
				return &pendingError{code: terr.Code}
			case "slow_down":
				return &pendingError{code: terr.Code, slowDown: true}
			}
			if terr.Description != "" {
				return fmt.Errorf("auth0: %s", terr.Description)
			}
		}
		return fmt.Errorf("auth0: unexpected status %d", resp.StatusCode)
	}

	return json.Unmarshal(body, out)
}

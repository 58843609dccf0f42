// Package auth holds the Auth0-backed token source: a disk cache of the
// user's tokens and a device-code login flow for terminals.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshSkew renews access tokens slightly before their actual expiry so
// an in-flight request never carries a token that dies mid-request.
const refreshSkew = 60 * time.Second

// Credentials is the locally persisted token set.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Stale reports whether the access token is missing, unparseable, or within
// refreshSkew of its expiry. The token is parsed without verification; the
// scorekeeper verifies signatures, the client only schedules refreshes.
func (c *Credentials) Stale(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return true
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(c.AccessToken, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.Add(refreshSkew).After(exp.Time)
}

// Cache persists Credentials as a JSON file under the state directory.
type Cache struct {
	path string
	mu   sync.Mutex
}

func NewCache(dir string) *Cache {
	return &Cache{path: filepath.Join(dir, "tokens.json")}
}

// Load returns the cached credentials, or nil if none are stored or the
// file is unreadable.
func (c *Cache) Load() *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		os.Remove(c.path)
		return nil
	}
	if creds.AccessToken == "" {
		return nil
	}
	return &creds
}

// Save writes credentials to disk, readable by the owner only.
func (c *Cache) Save(creds Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}

// Clear removes stored credentials. Missing files are not an error.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

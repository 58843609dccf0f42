package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemStore is an in-process session store, used by the serve front where
// the browser cookie is the durable copy, and by tests.
type MemStore struct {
	mu        sync.Mutex
	sessionID string
}

// NewMemStore returns a store optionally seeded with an existing session
// identifier (e.g. read from a request cookie).
func NewMemStore(seed string) *MemStore {
	return &MemStore{sessionID: seed}
}

func (s *MemStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.sessionID != ""
}

func (s *MemStore) Put(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
	return nil
}

// sessionFile is the on-disk shape of a persisted anonymous session.
type sessionFile struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FileStore persists the anonymous session identifier under the state
// directory for CLI runs. Entries older than SessionTTL are treated as
// absent and removed.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{
		path: filepath.Join(dir, "session.json"),
		now:  time.Now,
	}
}

func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		// Corrupted file, remove it so the next Put starts clean.
		os.Remove(s.path)
		return "", false
	}

	if sf.SessionID == "" || s.now().Sub(sf.CreatedAt) > SessionTTL {
		os.Remove(s.path)
		return "", false
	}
	return sf.SessionID, true
}

func (s *FileStore) Put(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(sessionFile{
		SessionID: sessionID,
		CreatedAt: s.now(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

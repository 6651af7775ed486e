package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// SessionStore persists sessions per connection identity, so an existing
// sign-in survives process restarts the way a browser session survives
// reloads. Implementations must tolerate missing or corrupt data by
// reporting "no session".
type SessionStore interface {
	Load(identity string) (*Session, error)
	Save(identity string, s *Session) error
	Clear(identity string) error
}

// FileSessionStore keeps one JSON file per connection identity under
// dir/sessions. The identity is hashed into the filename: it contains the
// anon key and must not appear on disk in the clear.
type FileSessionStore struct {
	dir string
}

func NewFileSessionStore(stateDir string) *FileSessionStore {
	return &FileSessionStore{dir: filepath.Join(stateDir, "sessions")}
}

func (f *FileSessionStore) path(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:8])+".json")
}

func (f *FileSessionStore) Load(identity string) (*Session, error) {
	data, err := os.ReadFile(f.path(identity))
	if err != nil {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// Corrupt cache is the same as no session.
		return nil, nil
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

func (f *FileSessionStore) Save(identity string, s *Session) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path(identity), data, 0o600)
}

func (f *FileSessionStore) Clear(identity string) error {
	err := os.Remove(f.path(identity))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemorySessionStore is the in-memory SessionStore used in tests and as the
// default when no state directory is configured.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

func (m *MemorySessionStore) Load(identity string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[identity]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MemorySessionStore) Save(identity string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[identity] = &cp
	return nil
}

func (m *MemorySessionStore) Clear(identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, identity)
	return nil
}

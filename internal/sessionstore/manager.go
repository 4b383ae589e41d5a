package sessionstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/logger"
	"github.com/riptide-dev/riptide/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrAlreadyExists mirrors the teacher's ErrSessionAlreadyExists.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrNotFound mirrors the teacher's ErrSessionNotFound.
	ErrNotFound = errors.New("session not found")
	// ErrTooMany mirrors the teacher's ErrTooManySessions.
	ErrTooMany = errors.New("maximum session count reached")
)

// Manager owns session lifecycle: creation, lookup, expiry, and durable
// persistence through a ports.SessionStorage backend (typically bbolt).
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	storage      ports.SessionStorage
	baseDataDir  string
	ttl          time.Duration
	maxSessions  int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager restores any sessions persisted in storage, then starts the
// cleanup goroutine.
func NewManager(storage ports.SessionStorage, baseDataDir string, ttl, cleanupInterval time.Duration, maxSessions int) (*Manager, error) {
	m := &Manager{
		sessions:    make(map[string]*Session),
		storage:     storage,
		baseDataDir: baseDataDir,
		ttl:         ttl,
		maxSessions: maxSessions,
		stopCh:      make(chan struct{}),
	}

	if err := m.restore(); err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.cleanupLoop(cleanupInterval)
	}()

	return m, nil
}

type persistedSession struct {
	ID          string    `json:"id"`
	UserDataDir string    `json:"user_data_dir"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsed    time.Time `json:"last_used"`
	Cookies     []Cookie  `json:"cookies"`
}

func (m *Manager) restore() error {
	if m.storage == nil {
		return nil
	}
	ids, err := m.storage.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		raw, found, err := m.storage.Load(id)
		if err != nil || !found {
			continue
		}
		var p persistedSession
		if err := json.Unmarshal(raw, &p); err != nil {
			logger.Warn("sessionstore: discarding unreadable persisted session", "id", id, "error", err)
			continue
		}
		s := newSession(p.ID, p.UserDataDir)
		s.CreatedAt = p.CreatedAt
		s.lastUsed.Store(p.LastUsed.UnixNano())
		s.SetCookies(p.Cookies)
		m.sessions[id] = s
	}
	return nil
}

func (m *Manager) persist(s *Session) {
	if m.storage == nil {
		return
	}
	p := persistedSession{
		ID:          s.ID,
		UserDataDir: s.UserDataDir,
		CreatedAt:   s.CreatedAt,
		LastUsed:    s.LastUsedTime(),
		Cookies:     s.Cookies(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		logger.Warn("sessionstore: failed to marshal session for persistence", "id", s.ID, "error", err)
		return
	}
	if err := m.storage.Save(s.ID, raw); err != nil {
		logger.Warn("sessionstore: failed to persist session", "id", s.ID, "error", err)
	}
}

// Create allocates a new session and its user-data directory.
func (m *Manager) Create(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, apperr.AlreadyExists("session %q already exists", id)
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, apperr.ResourceLimit("sessions")
	}

	dataDir := filepath.Join(m.baseDataDir, id)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "create session data dir", err)
	}

	s := newSession(id, dataDir)
	m.sessions[id] = s
	m.persist(s)
	return s, nil
}

// Get retrieves a session and refreshes its last-used timestamp.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return nil, apperr.NotFound("session %q not found", id)
	}
	s.Touch()
	return s, nil
}

// Destroy removes a session's in-memory and persisted state, and its
// user-data directory.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	s, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !exists {
		return apperr.NotFound("session %q not found", id)
	}

	if m.storage != nil {
		if err := m.storage.Delete(id); err != nil {
			logger.Warn("sessionstore: failed to delete persisted session", "id", id, "error", err)
		}
	}
	if s.UserDataDir != "" {
		if err := os.RemoveAll(s.UserDataDir); err != nil {
			logger.Warn("sessionstore: failed to remove user data dir", "id", id, "error", err)
		}
	}
	return nil
}

// List returns all active session IDs.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// PersistCookies merges the given cookies into a session's jar (replacing
// any with the same name, domain and path) and saves the session to
// durable storage.
func (m *Manager) PersistCookies(id string, cookies []Cookie) error {
	m.mu.RLock()
	s, exists := m.sessions[id]
	m.mu.RUnlock()
	if !exists {
		return apperr.NotFound("session %q not found", id)
	}
	s.MergeCookies(cookies)
	m.persist(s)
	return nil
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.stopCh:
			return
		}
	}
}

// cleanupExpired removes every session idle longer than the TTL, along
// with its stored record and data dir. It does no capacity-based eviction;
// Create refuses new sessions once MaxSessions is reached.
func (m *Manager) cleanupExpired() {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastUsedTime()) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		if m.storage != nil {
			if err := m.storage.Delete(s.ID); err != nil {
				logger.Warn("sessionstore: failed to delete expired session", "id", s.ID, "error", err)
			}
		}
		if s.UserDataDir != "" {
			if err := os.RemoveAll(s.UserDataDir); err != nil {
				logger.Warn("sessionstore: failed to remove expired user data dir", "id", s.ID, "error", err)
			}
		}
	}
}

// Close stops the cleanup goroutine.
func (m *Manager) Close() {
	close(m.stopCh)
	m.wg.Wait()
}

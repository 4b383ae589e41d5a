// Package sessionstore implements the session store (C6): persistent
// cookie jars and per-session user-data directories, durable across
// restarts via bbolt, grounded on flaresolverr-go's session.Manager
// (lock ordering, atomic LastUsed, reference counting) generalized from
// live browser pages to plain cookie/jar state.
package sessionstore

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cookie mirrors the fields the router needs to replay a session's jar
// into either a static fetch or a dynamic render.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
}

// Session is a persistent cookie jar plus a user-data directory handle,
// addressable by ID across requests.
//
// Lock ordering: always acquire opMu before mu, mirroring the teacher's
// documented discipline — opMu serializes whole operations on a session,
// mu protects only the cookie slice itself.
type Session struct {
	ID          string
	UserDataDir string
	CreatedAt   time.Time
	lastUsed    atomic.Int64

	mu      sync.Mutex
	cookies []Cookie

	opMu sync.Mutex
}

func newSession(id, userDataDir string) *Session {
	s := &Session{
		ID:          id,
		UserDataDir: userDataDir,
		CreatedAt:   time.Now(),
	}
	s.lastUsed.Store(s.CreatedAt.UnixNano())
	return s
}

// Touch refreshes the session's last-used timestamp.
func (s *Session) Touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsedTime returns the last-used timestamp.
func (s *Session) LastUsedTime() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Cookies returns a copy of the session's current cookie jar.
func (s *Session) Cookies() []Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cookie, len(s.cookies))
	copy(out, s.cookies)
	return out
}

// SetCookies replaces the session's cookie jar wholesale.
func (s *Session) SetCookies(cookies []Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = cookies
}

// MergeCookies upserts cookies by (name, domain, path), the behavior a
// Set-Cookie response header implies.
func (s *Session) MergeCookies(incoming []Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[[3]string]int, len(s.cookies))
	for i, c := range s.cookies {
		index[[3]string{c.Name, c.Domain, c.Path}] = i
	}
	for _, c := range incoming {
		key := [3]string{c.Name, c.Domain, c.Path}
		if i, ok := index[key]; ok {
			s.cookies[i] = c
			continue
		}
		index[key] = len(s.cookies)
		s.cookies = append(s.cookies, c)
	}
}

// LockOperation serializes whole operations against this session (e.g. a
// render that both reads and writes the jar).
func (s *Session) LockOperation() { s.opMu.Lock() }

// UnlockOperation releases the operation lock.
func (s *Session) UnlockOperation() { s.opMu.Unlock() }

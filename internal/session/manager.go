package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager is the token-keyed session registry. It owns session lifetime:
// creation at login, lookup on every request, and removal at logout or
// after the idle timeout.
type Manager struct {
	log       *slog.Logger
	factories map[string]ModuleFactory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a registry whose sessions are built from the given
// module factories.
func NewManager(log *slog.Logger, factories map[string]ModuleFactory) *Manager {
	return &Manager{
		log:       log.With("component", "sessions"),
		factories: factories,
		sessions:  make(map[string]*Session),
	}
}

// Create opens a session for an authenticated principal and returns it. The
// token is freshly generated and unique.
func (m *Manager) Create(username string, admin bool) *Session {
	token := uuid.NewString()
	s := New(m.log, token, username, admin, m.factories)

	m.mu.Lock()
	m.sessions[token] = s
	m.mu.Unlock()

	m.log.Info("session created", "username", username, "admin", admin)
	return s
}

// GetOrCreate returns the session bound to an externally derived key,
// creating it on first sight. Used for federated principals whose session
// key is derived from their identity token rather than issued by us.
func (m *Manager) GetOrCreate(key, username string, admin bool) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := New(m.log, key, username, admin, m.factories)
	m.sessions[key] = s
	m.log.Info("session created", "username", username, "admin", admin)
	return s
}

// Get looks up a session by token.
func (m *Manager) Get(token string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	return s, ok
}

// Remove destroys a session and drops it from the registry. Removing an
// unknown token is a no-op.
func (m *Manager) Remove(token string) {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if ok {
		s.Destroy()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown destroys every session. Called once, at server stop.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Destroy()
	}
}

// StartIdleReaper launches a goroutine that removes sessions idle for longer
// than timeout. It stops when ctx is cancelled. A timeout of zero disables
// reaping.
func (m *Manager) StartIdleReaper(ctx context.Context, interval, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reapIdle(timeout)
			}
		}
	}()
}

func (m *Manager) reapIdle(timeout time.Duration) {
	cutoff := time.Now().Add(-timeout)

	m.mu.Lock()
	var expired []*Session
	for token, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			delete(m.sessions, token)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.log.Info("session expired", "username", s.Username())
		s.Destroy()
	}
}

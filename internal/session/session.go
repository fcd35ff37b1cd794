// Package session owns authenticated client sessions: per-session module
// instances built lazily on first use, the bound push connection, and the
// registry that expires idle sessions.
package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dcgate/dcgate/internal/api"
)

// ModuleFactory builds one feature module for a session. Factories run at
// most once per session, on the first request that names the module.
type ModuleFactory func(log *slog.Logger) api.Handler

type moduleSlot struct {
	once    sync.Once
	factory ModuleFactory
	handler api.Handler
}

// Session is one authenticated principal's state. Modules are constructed
// lazily so a session that never touches hubs never registers hub listeners.
type Session struct {
	token    string
	username string
	admin    bool
	created  time.Time
	log      *slog.Logger

	modules map[string]*moduleSlot

	mu           sync.Mutex
	socket       api.Socket
	lastActivity time.Time
	destroyed    bool
}

// New creates a session with the given module factories. The token is the
// bearer credential clients present on every request.
func New(log *slog.Logger, token, username string, admin bool, factories map[string]ModuleFactory) *Session {
	s := &Session{
		token:        token,
		username:     username,
		admin:        admin,
		created:      time.Now(),
		log:          log.With("session", username),
		modules:      make(map[string]*moduleSlot, len(factories)),
		lastActivity: time.Now(),
	}
	for name, factory := range factories {
		s.modules[name] = &moduleSlot{factory: factory}
	}
	return s
}

// Token returns the session's bearer token.
func (s *Session) Token() string { return s.token }

// Username returns the authenticated account name.
func (s *Session) Username() string { return s.username }

// IsAdmin reports whether the principal has administrative access.
func (s *Session) IsAdmin() bool { return s.admin }

// Created returns the session's creation time.
func (s *Session) Created() time.Time { return s.created }

// Touch records activity, deferring idle expiry.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent request or connection.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// module returns the slot's handler, constructing it on first use. A socket
// bound before construction is attached to the new module immediately.
func (s *Session) module(slot *moduleSlot) api.Handler {
	slot.once.Do(func() {
		slot.handler = slot.factory(s.log)
		s.mu.Lock()
		sock := s.socket
		s.mu.Unlock()
		if sock != nil {
			slot.handler.OnSocketConnected(sock)
		}
	})
	return slot.handler
}

// constructed returns the handlers built so far. Slots whose factory never
// ran are skipped; they have no listeners or socket state to manage.
func (s *Session) constructed() []api.Handler {
	out := make([]api.Handler, 0, len(s.modules))
	for _, slot := range s.modules {
		if h := slot.handler; h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Dispatch routes one request to its module. Unknown modules are 404;
// a version the module does not speak is 412 so clients can distinguish
// "upgrade me" from "no such thing".
func (s *Session) Dispatch(req *api.Request) *api.Response {
	s.Touch()

	slot, ok := s.modules[req.Module]
	if !ok {
		return api.ErrorResponse(http.StatusNotFound, "module not found: "+req.Module)
	}
	h := s.module(slot)
	if req.Version != h.Version() {
		return api.ErrorResponse(http.StatusPreconditionFailed,
			fmt.Sprintf("module %s does not support version %d", req.Module, req.Version))
	}

	req.Session = s
	return h.HandleRequest(req)
}

// SocketConnected binds a push connection. At most one connection is bound;
// a newcomer replaces the previous binding.
func (s *Session) SocketConnected(sock api.Socket) {
	s.mu.Lock()
	s.socket = sock
	s.lastActivity = time.Now()
	s.mu.Unlock()

	for _, h := range s.constructed() {
		h.OnSocketConnected(sock)
	}
}

// SocketDisconnected clears the push connection. Only the currently bound
// socket may unbind; a stale connection closing late is ignored.
func (s *Session) SocketDisconnected(sock api.Socket) {
	s.mu.Lock()
	if s.socket != sock {
		s.mu.Unlock()
		return
	}
	s.socket = nil
	s.lastActivity = time.Now()
	s.mu.Unlock()

	for _, h := range s.constructed() {
		h.OnSocketDisconnected()
	}
}

// Destroy tears down every constructed module, unregistering their engine
// listeners. Idempotent.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()

	for _, h := range s.constructed() {
		h.Destroy()
	}
	s.log.Debug("session destroyed")
}

// Package server is the gateway's connection manager: plain and TLS HTTP
// listeners sharing one dispatch path, WebSocket multiplexing with callback
// correlation, and per-request header authentication for plain HTTP calls.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dcgate/dcgate/internal/api"
	"github.com/dcgate/dcgate/internal/auth"
	"github.com/dcgate/dcgate/internal/config"
	"github.com/dcgate/dcgate/internal/session"
	"github.com/dcgate/dcgate/internal/store"
	"github.com/dcgate/dcgate/pkg/protocol"
)

// Server accepts client connections and dispatches their requests into
// sessions. It owns the socket registry and the listener lifecycle.
type Server struct {
	log           *slog.Logger
	cfg           config.ServerConfig
	sessions      *session.Manager
	authProvider  auth.Provider
	loginProvider auth.LoginProvider
	store         store.Store
	mux           *chi.Mux
	upgrader      websocket.Upgrader
	maxFrameBytes int64

	mu           sync.RWMutex
	sockets      map[string]*socketConn // conn id -> socket
	bySession    map[string]*socketConn // session token -> bound socket
	shuttingDown bool

	plain *http.Server
	tls   *http.Server
}

// New creates a server. loginProvider may be nil when accounts are managed
// by an external identity provider.
func New(cfg *config.Config, log *slog.Logger, sessions *session.Manager, ap auth.Provider, lp auth.LoginProvider, st store.Store) *Server {
	s := &Server{
		log:           log.With("component", "server"),
		cfg:           cfg.Server,
		sessions:      sessions,
		authProvider:  ap,
		loginProvider: lp,
		store:         st,
		upgrader:      makeUpgrader(cfg.Server.AllowedOrigins),
		maxFrameBytes: cfg.Session.MaxMessageBytes,
		sockets:       make(map[string]*socketConn),
		bySession:     make(map[string]*socketConn),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.RealIP)
	mux.Use(makeCORSMiddleware(cfg.Server.AllowedOrigins))

	mux.Get("/healthz", s.handleHealthz)

	mux.Route("/api/{version}", func(r chi.Router) {
		r.Get("/", s.handleSocket)
		if lp != nil {
			r.Post("/auth/login", s.handleLogin)
		}
		r.Delete("/auth", s.handleLogout)
		r.HandleFunc("/*", s.handleDispatch)
	})

	s.mux = mux
	return s
}

// Handler exposes the HTTP handler, used by tests with httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Start launches the configured listeners. It returns after both listeners
// are started; listener failures are reported on errCh.
func (s *Server) Start(errCh chan<- error) {
	if s.cfg.Addr != "" {
		s.plain = &http.Server{Addr: s.cfg.Addr, Handler: s.mux}
		go func() {
			s.log.Info("listening", "addr", s.cfg.Addr)
			if err := s.plain.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("plain listener: %w", err)
			}
		}()
	}
	if s.cfg.TLSAddr != "" {
		s.tls = &http.Server{Addr: s.cfg.TLSAddr, Handler: s.mux}
		go func() {
			s.log.Info("listening", "addr", s.cfg.TLSAddr, "tls", true)
			if err := s.tls.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("tls listener: %w", err)
			}
		}()
	}
}

// Shutdown refuses new connections, closes live sockets and stops the
// listeners.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.shuttingDown = true
	sockets := make([]*socketConn, 0, len(s.sockets))
	for _, sc := range s.sockets {
		sockets = append(sockets, sc)
	}
	s.mu.Unlock()

	for _, sc := range sockets {
		sc.close(websocket.CloseGoingAway, "server shutting down")
	}
	if s.plain != nil {
		_ = s.plain.Shutdown(ctx)
	}
	if s.tls != nil {
		_ = s.tls.Shutdown(ctx)
	}
}

// Push delivers a payload to the socket bound to the given session token.
// Best effort: no socket, no delivery, no error.
func (s *Server) Push(sessionToken string, payload any) {
	s.mu.RLock()
	sc := s.bySession[sessionToken]
	s.mu.RUnlock()
	if sc == nil {
		return
	}
	if err := sc.SendJSON(payload); err != nil {
		s.log.Debug("push failed", "session", sessionToken, "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, identity, err := s.loginProvider.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r.Context(), "login.failed", req.Username, "")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess := s.sessions.GetOrCreate(identity.SessionKey, identity.Username, identity.Admin)
	s.audit(r.Context(), "login.success", identity.Username, "")

	writeJSON(w, http.StatusOK, map[string]any{
		"auth_token": token,
		"session":    sess.Token(),
		"username":   identity.Username,
		"admin":      identity.Admin,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	s.sessions.Remove(identity.SessionKey)
	s.audit(r.Context(), "logout", identity.Username, "")
	w.WriteHeader(http.StatusNoContent)
}

// handleDispatch serves plain HTTP API calls. Each request authenticates via
// the Authorization header; there is no persistent binding.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if s.refusing() {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}

	version, err := apiVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	sess := s.sessions.GetOrCreate(identity.SessionKey, identity.Username, identity.Admin)

	rest := strings.Trim(chi.URLParam(r, "*"), "/")
	segments := strings.Split(rest, "/")
	if rest == "" || len(segments) < 2 {
		writeError(w, http.StatusNotFound, "module and section required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
		return
	}

	req := &api.Request{
		Module:  segments[0],
		Version: version,
		Method:  r.Method,
		Path:    segments[1:],
		Body:    body,
		Range:   rangeFromQuery(r),
	}

	resp := sess.Dispatch(req)
	writeResponse(w, resp)
}

// handleSocket upgrades to WebSocket and runs the connection's read loop
// until the peer goes away.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if s.refusing() {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}

	version, err := apiVersion(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	sc := newSocketConn(s, conn, version, r.TLS != nil)

	s.mu.Lock()
	s.sockets[sc.id] = sc
	s.mu.Unlock()

	s.log.Info("socket connected", "conn_id", sc.id, "secure", sc.secure)
	sc.run()
}

func (s *Server) removeSocket(sc *socketConn) {
	s.mu.Lock()
	delete(s.sockets, sc.id)
	if sess := sc.boundSession(); sess != nil && s.bySession[sess.Token()] == sc {
		delete(s.bySession, sess.Token())
	}
	s.mu.Unlock()

	if sess := sc.boundSession(); sess != nil {
		sess.SocketDisconnected(sc)
	}
	s.log.Info("socket disconnected", "conn_id", sc.id)
}

// bindSession records the socket as its session's push target.
func (s *Server) bindSession(sc *socketConn, sess *session.Session) {
	s.mu.Lock()
	s.bySession[sess.Token()] = sc
	s.mu.Unlock()
	sess.SocketConnected(sc)
}

func (s *Server) refusing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shuttingDown
}

func (s *Server) authenticate(r *http.Request) (*auth.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, auth.ErrUnauthorized
	}
	return s.authProvider.ValidateToken(r.Context(), authHeader[7:])
}

func (s *Server) audit(ctx context.Context, action, username, detail string) {
	if s.store == nil {
		return
	}
	event := &store.AuditEvent{
		ID:        uuid.New().String(),
		Action:    action,
		Username:  username,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := s.store.LogAuditEvent(ctx, event); err != nil {
		s.log.Warn("failed to log audit event", "action", action, "error", err)
	}
}

// apiVersion parses the "v<N>" path segment.
func apiVersion(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "version")
	if !strings.HasPrefix(raw, "v") {
		return 0, fmt.Errorf("invalid api version %q", raw)
	}
	v, err := strconv.Atoi(raw[1:])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid api version %q", raw)
	}
	return v, nil
}

func rangeFromQuery(r *http.Request) *api.Range {
	q := r.URL.Query()
	if q.Get("range_start") == "" && q.Get("range_count") == "" {
		return nil
	}
	start, _ := strconv.Atoi(q.Get("range_start"))
	count, _ := strconv.Atoi(q.Get("range_count"))
	return &api.Range{Start: start, Count: count}
}

// writeResponse maps a dispatch result onto the HTTP response.
func writeResponse(w http.ResponseWriter, resp *api.Response) {
	if !resp.OK() {
		writeJSON(w, resp.Code, protocol.Error{Message: resp.Error})
		return
	}
	if resp.Body == nil {
		w.WriteHeader(resp.Code)
		return
	}
	writeJSON(w, resp.Code, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.Error{Message: message})
}

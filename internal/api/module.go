// Package api implements the request-routing core of dcgate: typed path
// parameter matching, per-module handler tables with first-registered-wins
// resolution, subscription bookkeeping with push delivery, and hierarchical
// parent/child module composition.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/dcgate/dcgate/pkg/protocol"
)

// Handler is the dispatch surface a session sees for each top-level module.
type Handler interface {
	HandleRequest(req *Request) *Response
	Version() int
	OnSocketConnected(s Socket)
	OnSocketDisconnected()
	// Destroy unregisters engine listeners. Called exactly once, when the
	// owning session is destroyed.
	Destroy()
}

// HandlerFunc is a leaf request handler. A nil body with a nil error becomes
// 204 No Content; a non-nil body becomes 200 OK.
type HandlerFunc func(req *Request) (any, error)

type handler struct {
	method       string
	requiresBody bool
	params       []ParamMatcher
	fn           HandlerFunc

	// set for sub-handlers that delegate into a child module; method and
	// requiresBody are ignored for those
	route func(req *Request) *Response
}

func (h *handler) isModuleHandler() bool { return h.route != nil }

func (h *handler) matches(method string, params []string) bool {
	if h.isModuleHandler() {
		// The key segment plus at least one section for the child.
		return len(params) >= 2 && h.params[0].Match(params[0])
	}
	if h.method != method || len(params) != len(h.params) {
		return false
	}
	for i, p := range h.params {
		if !p.Match(params[i]) {
			return false
		}
	}
	return true
}

// subscriptionState is the flag map plus the bound push socket. Children of a
// hierarchical module share their parent's state so the parent offers one
// combined subscribe surface and one push target.
type subscriptionState struct {
	mu     sync.RWMutex
	flags  map[string]bool
	socket Socket
}

// Module routes requests to registered handlers and pushes subscription
// events to its bound connection. It is embedded by every feature module.
type Module struct {
	version  int
	log      *slog.Logger
	sections map[string][]*handler
	subs     *subscriptionState
}

// NewModule creates a module with the built-in listeners section registered.
func NewModule(log *slog.Logger, version int) *Module {
	m := &Module{
		version:  version,
		log:      log,
		sections: make(map[string][]*handler),
		subs: &subscriptionState{
			flags: make(map[string]bool),
		},
	}
	m.Handle("listeners", http.MethodPost, nil, true, m.handleSubscribe)
	m.Handle("listeners", http.MethodDelete, []ParamMatcher{WordParam}, false, m.handleUnsubscribe)
	return m
}

// Version is the module's declared API version, validated by the session
// before dispatch.
func (m *Module) Version() int { return m.version }

// Handle registers a leaf handler under a section. Registration order is the
// matching order: more specific patterns must be registered before more
// general ones.
func (m *Module) Handle(section, method string, params []ParamMatcher, requiresBody bool, fn HandlerFunc) {
	m.sections[section] = append(m.sections[section], &handler{
		method:       method,
		requiresBody: requiresBody,
		params:       params,
		fn:           fn,
	})
}

func (m *Module) handleModule(section string, key ParamMatcher, route func(req *Request) *Response) {
	m.sections[section] = append(m.sections[section], &handler{
		params: []ParamMatcher{key},
		route:  route,
	})
}

// HandleRequest resolves the request to a single handler and invokes it.
func (m *Module) HandleRequest(req *Request) *Response {
	if len(req.Path) == 0 {
		return errorResponse(http.StatusNotFound, "section missing")
	}
	section := req.Path[0]
	params := req.Path[1:]

	for _, h := range m.sections[section] {
		if !h.matches(req.Method, params) {
			continue
		}
		if h.isModuleHandler() {
			return h.route(req)
		}
		if h.requiresBody && !req.HasBody() {
			return errorResponse(http.StatusBadRequest, "request body required")
		}
		body, err := h.fn(req)
		if err != nil {
			return failureResponse(err)
		}
		return successResponse(body)
	}

	return errorResponse(http.StatusNotFound, "handler not found: "+req.Method+" "+strings.Join(req.Path, "/"))
}

// CreateSubscription declares subscription names, initially inactive.
func (m *Module) CreateSubscription(names ...string) {
	m.subs.mu.Lock()
	defer m.subs.mu.Unlock()
	for _, name := range names {
		if _, ok := m.subs.flags[name]; !ok {
			m.subs.flags[name] = false
		}
	}
}

// SetSubscriptionState toggles a declared subscription. Undeclared names are
// ignored; that is a caller ordering bug, not user input.
func (m *Module) SetSubscriptionState(name string, active bool) {
	m.subs.mu.Lock()
	defer m.subs.mu.Unlock()
	if _, ok := m.subs.flags[name]; !ok {
		m.log.Warn("subscription state set for undeclared name", "subscription", name)
		return
	}
	m.subs.flags[name] = active
}

// SubscriptionActive reports whether the named subscription is enabled.
func (m *Module) SubscriptionActive(name string) bool {
	m.subs.mu.RLock()
	defer m.subs.mu.RUnlock()
	return m.subs.flags[name]
}

// SubscriptionExists reports whether the name has been declared.
func (m *Module) SubscriptionExists(name string) bool {
	m.subs.mu.RLock()
	defer m.subs.mu.RUnlock()
	_, ok := m.subs.flags[name]
	return ok
}

// OnSocketConnected binds the push target. Called by the session when its
// connection authenticates.
func (m *Module) OnSocketConnected(s Socket) {
	m.subs.mu.Lock()
	defer m.subs.mu.Unlock()
	m.subs.socket = s
}

// OnSocketDisconnected clears the push target.
func (m *Module) OnSocketDisconnected() {
	m.subs.mu.Lock()
	defer m.subs.mu.Unlock()
	m.subs.socket = nil
}

// Destroy is a no-op for plain modules; feature modules override it to
// unregister engine listeners.
func (m *Module) Destroy() {}

// Send pushes an event to the bound connection. A disabled subscription or a
// missing connection drops the event silently; modules may exist before any
// client observes them. Safe to call from engine listener goroutines.
func (m *Module) Send(subscription string, data any) {
	m.subs.mu.RLock()
	active := m.subs.flags[subscription]
	socket := m.subs.socket
	m.subs.mu.RUnlock()

	if !active || socket == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		m.log.Warn("push payload marshal failed", "subscription", subscription, "error", err)
		return
	}
	if err := socket.SendJSON(protocol.Push{Subscription: subscription, Data: raw}); err != nil {
		// Push is fire-and-forget; a closing connection is not an error.
		m.log.Debug("push delivery failed", "subscription", subscription, "error", err)
	}
}

func (m *Module) handleSubscribe(req *Request) (any, error) {
	name, err := requiredField[string](req.Body, "subscription")
	if err != nil {
		return nil, err
	}
	if !m.SubscriptionExists(name) {
		return nil, subscriptionNotFound(name)
	}
	m.SetSubscriptionState(name, true)
	return nil, nil
}

func (m *Module) handleUnsubscribe(req *Request) (any, error) {
	name := req.Param(0)
	if !m.SubscriptionExists(name) {
		return nil, subscriptionNotFound(name)
	}
	m.SetSubscriptionState(name, false)
	return nil, nil
}

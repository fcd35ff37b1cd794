package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
)

// KeyFunc canonicalizes a raw key segment into the stable form children are
// registered under, so "007" and "7" address the same numeric-keyed child.
type KeyFunc func(raw string) (string, error)

// TokenKey canonicalizes numeric instance keys.
func TokenKey(raw string) (string, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return "", notFoundKey(raw)
	}
	return strconv.FormatUint(n, 10), nil
}

// HashKey canonicalizes content-hash keys. The matcher has already enforced
// the 39-character base32 shape, so this is the identity.
func HashKey(raw string) (string, error) {
	return raw, nil
}

func notFoundKey(raw string) error {
	return errKeyNotFound{raw}
}

type errKeyNotFound struct{ raw string }

func (e errKeyNotFound) Error() string { return "session " + e.raw + " not found" }

// ParentModule owns per-instance child modules under a single section. One
// registered resource (e.g. "hubs") transparently routes to N independently
// addressable children, each mirroring one engine entity.
type ParentModule struct {
	*Module

	section string
	keyOf   KeyFunc

	childMu  sync.RWMutex
	children map[string]*SubModule
}

// NewParentModule creates a module whose section routes key-addressed
// requests into child modules. childSubscriptions lists the event names
// children emit; they are declared on the parent so one combined listeners
// surface covers both levels.
func NewParentModule(log *slog.Logger, version int, section string, key ParamMatcher, keyOf KeyFunc, subscriptions, childSubscriptions []string) *ParentModule {
	p := &ParentModule{
		Module:   NewModule(log, version),
		section:  section,
		keyOf:    keyOf,
		children: make(map[string]*SubModule),
	}
	p.CreateSubscription(subscriptions...)
	p.CreateSubscription(childSubscriptions...)
	p.handleModule(section, key, p.routeChild)
	return p
}

// AddChild registers a child under its canonical key. A duplicate key is an
// ordering bug in the caller; the existing child is kept.
func (p *ParentModule) AddChild(key string, child *SubModule) {
	p.childMu.Lock()
	defer p.childMu.Unlock()
	if _, ok := p.children[key]; ok {
		p.log.Warn("duplicate child key ignored", "section", p.section, "key", key)
		return
	}
	p.children[key] = child
}

// RemoveChild drops the child for the key. Requests already dispatched to the
// child are allowed to finish. Removing an absent key is a no-op.
func (p *ParentModule) RemoveChild(key string) {
	p.childMu.Lock()
	defer p.childMu.Unlock()
	delete(p.children, key)
}

// GetChild looks up a child by canonical key.
func (p *ParentModule) GetChild(key string) (*SubModule, bool) {
	p.childMu.RLock()
	defer p.childMu.RUnlock()
	c, ok := p.children[key]
	return c, ok
}

// Children returns a snapshot of the current children; the live registry is
// never exposed.
func (p *ParentModule) Children() []*SubModule {
	p.childMu.RLock()
	defer p.childMu.RUnlock()
	out := make([]*SubModule, 0, len(p.children))
	for _, c := range p.children {
		out = append(out, c)
	}
	return out
}

func (p *ParentModule) routeChild(req *Request) *Response {
	key, err := p.keyOf(req.Path[1])
	if err != nil {
		return errorResponse(http.StatusNotFound, err.Error())
	}
	child, ok := p.GetChild(key)
	if !ok {
		return errorResponse(http.StatusNotFound, "session "+key+" not found")
	}

	childReq := *req
	childReq.Path = req.Path[2:]
	return child.HandleRequest(&childReq)
}

// SubModule is a per-instance child of a ParentModule. It has its own handler
// table but shares the parent's subscription state and push socket, so child
// events flow through the parent's bound connection under their namespaced
// subscription names.
type SubModule struct {
	*Module
	id string
}

// NewSubModule creates a child bound to one engine entity.
func NewSubModule(parent *ParentModule, id string) *SubModule {
	m := &Module{
		version:  parent.version,
		log:      parent.log.With("child", id),
		sections: make(map[string][]*handler),
		subs:     parent.subs,
	}
	m.Handle("listeners", http.MethodPost, nil, true, m.handleSubscribe)
	m.Handle("listeners", http.MethodDelete, []ParamMatcher{WordParam}, false, m.handleUnsubscribe)
	return &SubModule{Module: m, id: id}
}

// ID is the canonical instance key the child is registered under.
func (s *SubModule) ID() string { return s.id }

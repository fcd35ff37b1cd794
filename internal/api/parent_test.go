package api

import (
	"net/http"
	"testing"
)

func newTestParent(t *testing.T) *ParentModule {
	t.Helper()
	return NewParentModule(testLogger(), 0, "session", TokenParam, TokenKey,
		[]string{"thing_created"}, []string{"thing_updated"})
}

func addEchoChild(p *ParentModule, key string) *SubModule {
	child := NewSubModule(p, key)
	child.Handle("ping", http.MethodGet, nil, false, func(req *Request) (any, error) {
		return "pong:" + key, nil
	})
	p.AddChild(key, child)
	return child
}

func TestRouteChild(t *testing.T) {
	p := newTestParent(t)
	addEchoChild(p, "7")

	resp := p.HandleRequest(newRequest(http.MethodGet, []string{"session", "7", "ping"}, ""))
	if resp.Code != http.StatusOK || resp.Body != "pong:7" {
		t.Fatalf("got %d %v", resp.Code, resp.Body)
	}

	// Keys canonicalize: "007" addresses the same child.
	resp = p.HandleRequest(newRequest(http.MethodGet, []string{"session", "007", "ping"}, ""))
	if resp.Code != http.StatusOK || resp.Body != "pong:7" {
		t.Fatalf("canonical key: got %d %v", resp.Code, resp.Body)
	}
}

func TestRouteChildUnknownKey(t *testing.T) {
	p := newTestParent(t)
	addEchoChild(p, "7")

	resp := p.HandleRequest(newRequest(http.MethodGet, []string{"session", "8", "ping"}, ""))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.Code)
	}
}

func TestRouteChildNeedsSection(t *testing.T) {
	p := newTestParent(t)
	addEchoChild(p, "7")

	// A single key segment does not reach the sub-handler, so parent-level
	// leaf handlers like DELETE session/<id> can coexist.
	deleted := false
	p.Handle("session", http.MethodDelete, []ParamMatcher{TokenParam}, false, func(req *Request) (any, error) {
		deleted = true
		return nil, nil
	})

	resp := p.HandleRequest(newRequest(http.MethodDelete, []string{"session", "7"}, ""))
	if resp.Code != http.StatusNoContent || !deleted {
		t.Fatalf("parent leaf handler not reached: %d", resp.Code)
	}
}

func TestAddChildDuplicateKeepsExisting(t *testing.T) {
	p := newTestParent(t)
	first := addEchoChild(p, "7")

	second := NewSubModule(p, "7")
	p.AddChild("7", second)

	got, ok := p.GetChild("7")
	if !ok || got != first {
		t.Fatal("duplicate AddChild must keep the existing child")
	}
}

func TestRemoveChildAbsent(t *testing.T) {
	p := newTestParent(t)
	p.RemoveChild("99") // must not panic
	if len(p.Children()) != 0 {
		t.Fatal("unexpected children")
	}
}

func TestChildSharesParentSubscriptions(t *testing.T) {
	p := newTestParent(t)
	child := addEchoChild(p, "7")
	sock := &fakeSocket{}
	p.OnSocketConnected(sock)

	// Subscribing through the child toggles the shared state.
	resp := child.HandleRequest(newRequest(http.MethodPost, []string{"listeners"}, `{"subscription":"thing_updated"}`))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("child subscribe: got %d", resp.Code)
	}
	if !p.SubscriptionActive("thing_updated") {
		t.Fatal("child subscribe must activate the parent's subscription")
	}

	// Child pushes go through the parent's socket.
	child.Send("thing_updated", map[string]int{"n": 1})
	if len(sock.pushes()) != 1 {
		t.Fatalf("got %d pushes, want 1", len(sock.pushes()))
	}
}

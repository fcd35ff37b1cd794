package session

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/dcgate/dcgate/internal/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// stubHandler counts lifecycle calls.
type stubHandler struct {
	version      int
	requests     int
	connected    int
	disconnected int
	destroyed    int
}

func (h *stubHandler) HandleRequest(req *api.Request) *api.Response {
	h.requests++
	return &api.Response{Code: http.StatusOK, Body: "ok"}
}
func (h *stubHandler) Version() int             { return h.version }
func (h *stubHandler) OnSocketConnected(api.Socket) { h.connected++ }
func (h *stubHandler) OnSocketDisconnected()    { h.disconnected++ }
func (h *stubHandler) Destroy()                 { h.destroyed++ }

type nopSocket struct{}

func (nopSocket) SendJSON(any) error { return nil }

func newTestSession(factories map[string]ModuleFactory) *Session {
	return New(testLogger(), "tok", "alice", false, factories)
}

func TestDispatchLazyConstruction(t *testing.T) {
	built := 0
	h := &stubHandler{}
	s := newTestSession(map[string]ModuleFactory{
		"things": func(log *slog.Logger) api.Handler {
			built++
			return h
		},
	})

	req := &api.Request{Module: "things", Method: http.MethodGet, Path: []string{"x"}}
	for i := 0; i < 3; i++ {
		if resp := s.Dispatch(req); resp.Code != http.StatusOK {
			t.Fatalf("dispatch %d: got %d", i, resp.Code)
		}
	}
	if built != 1 {
		t.Fatalf("factory ran %d times, want 1", built)
	}
	if h.requests != 3 {
		t.Fatalf("handler saw %d requests, want 3", h.requests)
	}
	if req.Session != s {
		t.Fatal("dispatch must attach the session to the request")
	}
}

func TestDispatchUnknownModule(t *testing.T) {
	s := newTestSession(nil)
	resp := s.Dispatch(&api.Request{Module: "nope", Path: []string{"x"}})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", resp.Code)
	}
}

func TestDispatchVersionMismatch(t *testing.T) {
	s := newTestSession(map[string]ModuleFactory{
		"things": func(log *slog.Logger) api.Handler { return &stubHandler{version: 0} },
	})
	resp := s.Dispatch(&api.Request{Module: "things", Version: 2, Path: []string{"x"}})
	if resp.Code != http.StatusPreconditionFailed {
		t.Fatalf("got %d, want 412", resp.Code)
	}
}

func TestSocketForwardedToConstructedOnly(t *testing.T) {
	built := &stubHandler{}
	lazy := &stubHandler{}
	s := newTestSession(map[string]ModuleFactory{
		"built": func(log *slog.Logger) api.Handler { return built },
		"lazy":  func(log *slog.Logger) api.Handler { return lazy },
	})
	s.Dispatch(&api.Request{Module: "built", Path: []string{"x"}})

	s.SocketConnected(nopSocket{})
	if built.connected != 1 {
		t.Fatalf("constructed module got %d connects, want 1", built.connected)
	}
	if lazy.connected != 0 {
		t.Fatal("unconstructed module must not see the socket")
	}

	// A module constructed after binding picks up the socket immediately.
	s.Dispatch(&api.Request{Module: "lazy", Path: []string{"x"}})
	if lazy.connected != 1 {
		t.Fatalf("late module got %d connects, want 1", lazy.connected)
	}
}

func TestSocketDisconnectStaleIgnored(t *testing.T) {
	h := &stubHandler{}
	s := newTestSession(map[string]ModuleFactory{
		"things": func(log *slog.Logger) api.Handler { return h },
	})
	s.Dispatch(&api.Request{Module: "things", Path: []string{"x"}})

	current := nopSocket{}
	s.SocketConnected(current)
	s.SocketDisconnected(struct{ nopSocket }{}) // not the bound socket
	if h.disconnected != 0 {
		t.Fatal("stale socket disconnect must be ignored")
	}
	s.SocketDisconnected(current)
	if h.disconnected != 1 {
		t.Fatalf("got %d disconnects, want 1", h.disconnected)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	h := &stubHandler{}
	s := newTestSession(map[string]ModuleFactory{
		"things": func(log *slog.Logger) api.Handler { return h },
	})
	s.Dispatch(&api.Request{Module: "things", Path: []string{"x"}})

	s.Destroy()
	s.Destroy()
	if h.destroyed != 1 {
		t.Fatalf("got %d destroys, want 1", h.destroyed)
	}
}

func TestTouchUpdatesLastActivity(t *testing.T) {
	s := newTestSession(nil)
	before := s.LastActivity()
	time.Sleep(5 * time.Millisecond)
	s.Touch()
	if !s.LastActivity().After(before) {
		t.Fatal("Touch must advance LastActivity")
	}
}

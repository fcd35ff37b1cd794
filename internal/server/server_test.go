package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dcgate/dcgate/internal/config"
	"github.com/dcgate/dcgate/internal/domain/memory"
	"github.com/dcgate/dcgate/internal/gateway"
	"github.com/dcgate/dcgate/pkg/protocol"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Addr:         ":0",
			MaxBodyBytes: 1 << 20,
			PingInterval: config.Duration{Duration: 30 * time.Second},
		},
		Auth: config.AuthConfig{
			Provider:  "builtin",
			JWTSecret: "0123456789abcdef0123456789abcdef0123456789abcdef",
			JWTExpiry: config.Duration{Duration: time.Hour},
			InitialAdmin: &config.InitialAdmin{
				Username: "admin",
				Password: "hunter22",
			},
		},
		Storage: config.StorageConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(t.TempDir(), "test.db"),
		},
		Session: config.SessionConfig{
			IdleTimeout:     config.Duration{Duration: 30 * time.Minute},
			ReapInterval:    config.Duration{Duration: time.Minute},
			MaxMessageBytes: 64 << 10,
		},
	}
}

func newTestGateway(t *testing.T) (*gateway.Gateway, *memory.Engine) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	engine := memory.New(log)
	g, err := gateway.New(testConfig(t), log, gateway.Engines{
		Hubs:       engine.Hubs,
		Filelists:  engine.Filelists,
		Chats:      engine.Chats,
		Extensions: engine.Extensions,
		System:     engine.System,
		Filesystem: engine.Filesystem,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g, engine
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AuthToken string `json:"auth_token"`
		Session   string `json:"session"`
		Username  string `json:"username"`
		Admin     bool   `json:"admin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.AuthToken == "" || resp.Session == "" {
		t.Fatalf("login: incomplete response %+v", resp)
	}
	return resp.AuthToken
}

func doRequest(handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g.Server().Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()

	body := strings.NewReader(`{"username":"admin","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v0/auth/login", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestDispatchRequiresAuth(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doRequest(g.Server().Handler(), http.MethodGet, "/api/v0/hubs/sessions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}

func TestDispatchHubLifecycle(t *testing.T) {
	g, engine := newTestGateway(t)
	engine.Hubs.SetNicks([]string{"alice", "bob"})
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	rec := doRequest(h, http.MethodPost, "/api/v0/hubs/session", token, map[string]any{
		"hub_url": "adc://example.org:1511",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect: got status %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID uint32 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == 0 {
		t.Fatal("connect: no hub id returned")
	}

	rec = doRequest(h, http.MethodGet, "/api/v0/hubs/sessions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got status %d", rec.Code)
	}
	var hubs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &hubs); err != nil {
		t.Fatal(err)
	}
	if len(hubs) != 1 {
		t.Fatalf("list: got %d hubs, want 1", len(hubs))
	}

	// Duplicate connect conflicts.
	rec = doRequest(h, http.MethodPost, "/api/v0/hubs/session", token, map[string]any{
		"hub_url": "adc://example.org:1511",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate connect: got status %d, want 409", rec.Code)
	}

	rec = doRequest(h, http.MethodDelete, fmt.Sprintf("/api/v0/hubs/session/%d", created.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("disconnect: got status %d, want 204", rec.Code)
	}
}

func TestDispatchUnknownModule(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	rec := doRequest(h, http.MethodGet, "/api/v0/nonsense/sessions", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func TestDispatchVersionMismatch(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	rec := doRequest(h, http.MethodGet, "/api/v2/hubs/sessions", token, nil)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("got status %d, want 412", rec.Code)
	}
}

func TestDispatchInvalidVersionSegment(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	rec := doRequest(h, http.MethodGet, "/api/nope/hubs/sessions", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestDispatchMissingBody(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	rec := doRequest(h, http.MethodPost, "/api/v0/hubs/session", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestAdminGuard(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()

	if _, err := g.Users().Add("peon", "password1", false); err != nil {
		t.Fatal(err)
	}
	token := login(t, h, "peon", "password1")

	rec := doRequest(h, http.MethodGet, "/api/v0/users/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	rec := doRequest(h, http.MethodDelete, "/api/v0/auth", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: got status %d, want 204", rec.Code)
	}
	if n := g.Sessions().Count(); n != 0 {
		t.Fatalf("got %d sessions after logout, want 0", n)
	}
}

func TestSocketDispatchAndPush(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.Server().Handler()
	token := login(t, h, "admin", "hunter22")

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v0/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Unauthenticated frames are refused.
	send := func(frame protocol.Request) protocol.Response {
		t.Helper()
		if err := conn.WriteJSON(frame); err != nil {
			t.Fatal(err)
		}
		var resp protocol.Response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatal(err)
		}
		return resp
	}

	resp := send(protocol.Request{
		CallbackID: 1,
		Method:     http.MethodGet,
		Module:     "hubs",
		Path:       "sessions",
	})
	if resp.CallbackID != 1 || resp.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated frame: got %+v", resp)
	}

	resp = send(protocol.Request{
		CallbackID:    2,
		Method:        http.MethodGet,
		Module:        "hubs",
		Path:          "sessions",
		Authorization: token,
	})
	if resp.CallbackID != 2 || resp.Code != http.StatusOK {
		t.Fatalf("authenticated frame: got %+v", resp)
	}

	resp = send(protocol.Request{
		CallbackID: 3,
		Method:     http.MethodPost,
		Module:     "hubs",
		Path:       "listeners",
		Data:       json.RawMessage(`{"subscription":"hub_created"}`),
	})
	if resp.Code != http.StatusNoContent {
		t.Fatalf("subscribe: got %+v", resp)
	}

	// An event raised through the HTTP surface reaches the bound socket.
	rec := doRequest(h, http.MethodPost, "/api/v0/hubs/session", token, map[string]any{
		"hub_url": "adc://example.org:1511",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("connect: got status %d", rec.Code)
	}

	var push protocol.Push
	if err := conn.ReadJSON(&push); err != nil {
		t.Fatal(err)
	}
	if push.Subscription != "hub_created" {
		t.Fatalf("got push %+v, want hub_created", push)
	}
	if !bytes.Contains(push.Data, []byte("adc://example.org:1511")) {
		t.Fatalf("push data missing hub url: %s", push.Data)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dcgate/dcgate/internal/api"
	"github.com/dcgate/dcgate/internal/session"
	"github.com/dcgate/dcgate/pkg/protocol"
)

const socketWriteTimeout = 10 * time.Second

// socketConn is one WebSocket client connection. The first authenticated
// frame binds it to a session; subsequent frames reuse the binding. All
// writes go through mu so responses, pushes and control frames never
// interleave.
type socketConn struct {
	id      string
	server  *Server
	conn    *websocket.Conn
	version int
	secure  bool

	mu      sync.Mutex // guards writes to conn
	stateMu sync.Mutex
	session *session.Session
}

func newSocketConn(s *Server, conn *websocket.Conn, version int, secure bool) *socketConn {
	return &socketConn{
		id:      uuid.New().String(),
		server:  s,
		conn:    conn,
		version: version,
		secure:  secure,
	}
}

// SendJSON writes one JSON text frame. Implements api.Socket.
func (sc *socketConn) SendJSON(v any) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_ = sc.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	return sc.conn.WriteJSON(v)
}

func (sc *socketConn) boundSession() *session.Session {
	sc.stateMu.Lock()
	defer sc.stateMu.Unlock()
	return sc.session
}

func (sc *socketConn) bind(sess *session.Session) {
	sc.stateMu.Lock()
	sc.session = sess
	sc.stateMu.Unlock()
}

func (sc *socketConn) close(code int, reason string) {
	sc.mu.Lock()
	_ = sc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(socketWriteTimeout))
	sc.mu.Unlock()
	_ = sc.conn.Close()
}

// run reads frames until the connection drops, then unregisters the socket.
func (sc *socketConn) run() {
	defer func() {
		_ = sc.conn.Close()
		sc.server.removeSocket(sc)
	}()

	sc.conn.SetReadLimit(sc.server.maxFrameBytes)
	stopKeepalive := startKeepalive(sc.conn, &sc.mu, sc.server.cfg.PingInterval.Duration)
	defer stopKeepalive()

	for {
		_, raw, err := sc.conn.ReadMessage()
		if err != nil {
			sc.server.log.Debug("socket read error", "conn_id", sc.id, "error", err)
			return
		}

		var frame protocol.Request
		if err := json.Unmarshal(raw, &frame); err != nil {
			sc.reply(0, api.ErrorResponse(http.StatusBadRequest, "malformed frame: "+err.Error()))
			continue
		}
		sc.handleFrame(&frame)
	}
}

func (sc *socketConn) handleFrame(frame *protocol.Request) {
	sess := sc.boundSession()

	// An authorization field authenticates the frame and (re)binds the
	// socket to the token's session.
	if frame.Authorization != "" {
		identity, err := sc.server.authProvider.ValidateToken(context.Background(), frame.Authorization)
		if err != nil {
			sc.reply(frame.CallbackID, api.ErrorResponse(http.StatusUnauthorized, "invalid token"))
			return
		}
		sess = sc.server.sessions.GetOrCreate(identity.SessionKey, identity.Username, identity.Admin)
		sc.bind(sess)
		sc.server.bindSession(sc, sess)
	}

	if sess == nil {
		sc.reply(frame.CallbackID, api.ErrorResponse(http.StatusUnauthorized, "authorization required"))
		return
	}

	segments := strings.Split(strings.Trim(frame.Path, "/"), "/")
	if frame.Module == "" || len(segments) == 0 || segments[0] == "" {
		sc.reply(frame.CallbackID, api.ErrorResponse(http.StatusNotFound, "module and section required"))
		return
	}

	version := frame.Version
	if version == 0 {
		version = sc.version
	}

	req := &api.Request{
		Module:  frame.Module,
		Version: version,
		Method:  frame.Method,
		Path:    segments,
		Body:    frame.Data,
		Range:   rangeFromFrame(frame),
	}

	sc.reply(frame.CallbackID, sess.Dispatch(req))
}

func (sc *socketConn) reply(callbackID int, resp *api.Response) {
	out := protocol.Response{
		CallbackID: callbackID,
		Code:       resp.Code,
	}
	if resp.Error != "" {
		out.Error = &protocol.Error{Message: resp.Error}
	} else if resp.Body != nil {
		raw, err := json.Marshal(resp.Body)
		if err != nil {
			out.Code = http.StatusInternalServerError
			out.Error = &protocol.Error{Message: "encode response: " + err.Error()}
		} else {
			out.Data = raw
		}
	}
	if err := sc.SendJSON(out); err != nil {
		sc.server.log.Debug("socket reply failed", "conn_id", sc.id, "error", err)
	}
}

func rangeFromFrame(frame *protocol.Request) *api.Range {
	if frame.RangeStart == nil && frame.RangeCount == nil {
		return nil
	}
	r := &api.Range{}
	if frame.RangeStart != nil {
		r.Start = *frame.RangeStart
	}
	if frame.RangeCount != nil {
		r.Count = *frame.RangeCount
	}
	return r
}

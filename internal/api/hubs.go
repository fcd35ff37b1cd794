package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dcgate/dcgate/internal/domain"
)

var (
	hubSubscriptions = []string{
		"hub_created",
		"hub_removed",
	}
	hubSessionSubscriptions = []string{
		"hub_updated",
		"hub_chat_message",
		"hub_status_message",
	}
)

// HubsModule exposes the engine's hub connections: one child module per
// established hub, keyed by the numeric hub id.
type HubsModule struct {
	*ParentModule
	hubs domain.HubManager
}

// NewHubsModule builds the module and syncs children with hubs that already
// exist in the engine.
func NewHubsModule(log *slog.Logger, hubs domain.HubManager) *HubsModule {
	m := &HubsModule{
		ParentModule: NewParentModule(log.With("module", "hubs"), 0,
			"session", TokenParam, TokenKey, hubSubscriptions, hubSessionSubscriptions),
		hubs: hubs,
	}

	m.Handle("sessions", http.MethodGet, nil, false, m.handleGetHubs)
	m.Handle("session", http.MethodPost, nil, true, m.handleConnect)
	m.Handle("session", http.MethodDelete, []ParamMatcher{TokenParam}, false, m.handleDisconnect)
	m.Handle("search_nicks", http.MethodPost, nil, true, m.handleSearchNicks)

	m.hubs.AddHubListener(m)
	for _, h := range m.hubs.Hubs() {
		m.addHub(h)
	}
	return m
}

// Destroy unregisters the engine listener before the module goes away.
func (m *HubsModule) Destroy() {
	m.hubs.RemoveHubListener(m)
}

func hubKey(h domain.Hub) string {
	return strconv.FormatUint(uint64(h.ID()), 10)
}

func (m *HubsModule) addHub(h domain.Hub) {
	child := NewSubModule(m.ParentModule, hubKey(h))
	registerChatHandlers(child.Module, h, h.SendStatusMessage)

	child.Handle("reconnect", http.MethodPost, nil, false, func(req *Request) (any, error) {
		h.Reconnect()
		return nil, nil
	})
	child.Handle("favorite", http.MethodPost, nil, false, func(req *Request) (any, error) {
		return nil, h.Favorite()
	})
	child.Handle("password", http.MethodPost, nil, true, func(req *Request) (any, error) {
		password, err := requiredField[string](req.Body, "password")
		if err != nil {
			return nil, err
		}
		h.Password(password)
		return nil, nil
	})
	child.Handle("redirect", http.MethodPost, nil, false, func(req *Request) (any, error) {
		h.Redirect()
		return nil, nil
	})

	m.AddChild(child.ID(), child)
}

func serializeHub(h domain.Hub) map[string]any {
	connectState := map[string]any{"id": h.ConnectState()}
	if url := h.RedirectURL(); url != "" {
		connectState = map[string]any{"id": "redirect", "hub_url": url}
	}
	return map[string]any{
		"id":      h.ID(),
		"hub_url": h.URL(),
		"identity": map[string]any{
			"name":        h.Name(),
			"description": h.Description(),
			"user_count":  h.UserCount(),
			"share_size":  h.ShareSize(),
		},
		"connect_state": connectState,
		"unread_count":  h.UnreadCount(),
	}
}

func (m *HubsModule) handleGetHubs(req *Request) (any, error) {
	hubs := m.hubs.Hubs()
	out := make([]map[string]any, 0, len(hubs))
	for _, h := range hubs {
		out = append(out, serializeHub(h))
	}
	return out, nil
}

func (m *HubsModule) handleConnect(req *Request) (any, error) {
	url, err := requiredField[string](req.Body, "hub_url")
	if err != nil {
		return nil, err
	}
	h, err := m.hubs.Connect(url)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": h.ID()}, nil
}

func (m *HubsModule) handleDisconnect(req *Request) (any, error) {
	id, err := strconv.ParseUint(req.Param(0), 10, 32)
	if err != nil {
		return nil, domain.NotFoundf("session %s", req.Param(0))
	}
	return nil, m.hubs.Disconnect(uint32(id))
}

func (m *HubsModule) handleSearchNicks(req *Request) (any, error) {
	pattern, err := requiredField[string](req.Body, "pattern")
	if err != nil {
		return nil, err
	}
	maxResults, err := requiredField[int](req.Body, "max_results")
	if err != nil {
		return nil, err
	}
	return m.hubs.SearchNicks(pattern, maxResults), nil
}

// HubCreated mirrors the new engine hub as a child module and announces it.
func (m *HubsModule) HubCreated(h domain.Hub) {
	m.addHub(h)
	m.Send("hub_created", serializeHub(h))
}

// HubRemoved drops the child; in-flight requests to it complete normally.
func (m *HubsModule) HubRemoved(h domain.Hub) {
	m.RemoveChild(hubKey(h))
	m.Send("hub_removed", map[string]any{"id": h.ID()})
}

// HubUpdated forwards identity/state changes under the child event name.
func (m *HubsModule) HubUpdated(h domain.Hub) {
	m.Send("hub_updated", serializeHub(h))
}

// HubChatMessage forwards one chat line from a hub.
func (m *HubsModule) HubChatMessage(h domain.Hub, msg domain.Message) {
	m.Send("hub_chat_message", map[string]any{"id": h.ID(), "message": msg})
}

// HubStatusMessage forwards one status line from a hub.
func (m *HubsModule) HubStatusMessage(h domain.Hub, msg domain.Message) {
	m.Send("hub_status_message", map[string]any{"id": h.ID(), "message": msg})
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

var (
	privateChatSubscriptions = []string{
		"chat_created",
		"chat_removed",
	}
	privateChatSessionSubscriptions = []string{
		"chat_updated",
		"chat_message",
	}
)

// PrivateChatModule exposes direct message sessions, one child per remote
// user keyed by CID.
type PrivateChatModule struct {
	*ParentModule
	chats domain.ChatManager
}

// NewPrivateChatModule builds the module and syncs children with chats
// already open in the engine.
func NewPrivateChatModule(log *slog.Logger, chats domain.ChatManager) *PrivateChatModule {
	m := &PrivateChatModule{
		ParentModule: NewParentModule(log.With("module", "private_chat"), 0,
			"session", HashParam, HashKey, privateChatSubscriptions, privateChatSessionSubscriptions),
		chats: chats,
	}

	m.Handle("sessions", http.MethodGet, nil, false, m.handleGetChats)
	m.Handle("session", http.MethodPost, nil, true, m.handleOpenChat)
	m.Handle("session", http.MethodDelete, []ParamMatcher{HashParam}, false, m.handleCloseChat)

	m.chats.AddChatListener(m)
	for _, chat := range m.chats.Chats() {
		m.addChat(chat)
	}
	return m
}

// Destroy unregisters the engine listener before the module goes away.
func (m *PrivateChatModule) Destroy() {
	m.chats.RemoveChatListener(m)
}

func (m *PrivateChatModule) addChat(chat domain.PrivateChat) {
	child := NewSubModule(m.ParentModule, chat.CID())
	registerChatHandlers(child.Module, chat, nil)
	m.AddChild(child.ID(), child)
}

func serializePrivateChat(chat domain.PrivateChat) map[string]any {
	return map[string]any{
		"id":           chat.CID(),
		"user":         chat.User(),
		"hub_url":      chat.HubURL(),
		"unread_count": chat.UnreadCount(),
	}
}

func (m *PrivateChatModule) handleGetChats(req *Request) (any, error) {
	chats := m.chats.Chats()
	out := make([]map[string]any, 0, len(chats))
	for _, chat := range chats {
		out = append(out, serializePrivateChat(chat))
	}
	return out, nil
}

func (m *PrivateChatModule) handleOpenChat(req *Request) (any, error) {
	cid, err := requiredField[string](req.Body, "cid")
	if err != nil {
		return nil, err
	}
	if !HashParam.Match(cid) {
		return nil, domain.Invalidf("field cid: not a valid CID")
	}

	chat, err := m.chats.Open(cid)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": chat.CID()}, nil
}

func (m *PrivateChatModule) handleCloseChat(req *Request) (any, error) {
	return nil, m.chats.Close(req.Param(0))
}

// ChatCreated mirrors the new chat as a child module and announces it.
func (m *PrivateChatModule) ChatCreated(chat domain.PrivateChat) {
	m.addChat(chat)
	m.Send("chat_created", serializePrivateChat(chat))
}

// ChatRemoved drops the child.
func (m *PrivateChatModule) ChatRemoved(chat domain.PrivateChat) {
	m.RemoveChild(chat.CID())
	m.Send("chat_removed", map[string]any{"id": chat.CID()})
}

// ChatUpdated forwards state changes under the child event name.
func (m *PrivateChatModule) ChatUpdated(chat domain.PrivateChat) {
	m.Send("chat_updated", serializePrivateChat(chat))
}

// ChatMessage forwards one received message.
func (m *PrivateChatModule) ChatMessage(chat domain.PrivateChat, msg domain.Message) {
	m.Send("chat_message", map[string]any{"id": chat.CID(), "message": msg})
}

package memory

import (
	"sync"

	"github.com/dcgate/dcgate/internal/domain"
)

// ChatManager implements domain.ChatManager.
type ChatManager struct {
	engine *Engine

	mu        sync.RWMutex
	chats     map[string]*privateChat
	listeners []domain.PrivateChatListener
}

func newChatManager(e *Engine) *ChatManager {
	return &ChatManager{
		engine: e,
		chats:  make(map[string]*privateChat),
	}
}

func (m *ChatManager) Chats() []domain.PrivateChat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.PrivateChat, 0, len(m.chats))
	for _, c := range m.chats {
		out = append(out, c)
	}
	return out
}

func (m *ChatManager) Open(cid string) (domain.PrivateChat, error) {
	nick, known := m.engine.userNick(cid)
	if !known {
		return nil, domain.NotFoundf("user %s", cid)
	}

	m.mu.Lock()
	if _, ok := m.chats[cid]; ok {
		m.mu.Unlock()
		return nil, domain.Existsf("chat %s", cid)
	}
	c := &privateChat{manager: m, cid: cid, user: nick}
	m.chats[cid] = c
	m.mu.Unlock()

	m.notify(func(l domain.PrivateChatListener) { l.ChatCreated(c) })
	return c, nil
}

func (m *ChatManager) Close(cid string) error {
	m.mu.Lock()
	c, ok := m.chats[cid]
	delete(m.chats, cid)
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundf("chat %s", cid)
	}
	m.notify(func(l domain.PrivateChatListener) { l.ChatRemoved(c) })
	return nil
}

// Deliver injects an inbound message from the remote user, as a real engine
// would on network traffic. Used by tests and the demo seed.
func (m *ChatManager) Deliver(cid, text string) error {
	m.mu.RLock()
	c, ok := m.chats[cid]
	m.mu.RUnlock()
	if !ok {
		return domain.NotFoundf("chat %s", cid)
	}
	msg := c.cache.append(c.user, text, false)
	m.notify(func(l domain.PrivateChatListener) { l.ChatMessage(c, msg) })
	m.notify(func(l domain.PrivateChatListener) { l.ChatUpdated(c) })
	return nil
}

func (m *ChatManager) AddChatListener(l domain.PrivateChatListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *ChatManager) RemoveChatListener(l domain.PrivateChatListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *ChatManager) notify(fn func(domain.PrivateChatListener)) {
	m.mu.RLock()
	listeners := make([]domain.PrivateChatListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}

// privateChat implements domain.PrivateChat.
type privateChat struct {
	manager *ChatManager
	cid     string
	user    string
	hubURL  string

	cache messageCache
}

func (c *privateChat) CID() string    { return c.cid }
func (c *privateChat) User() string   { return c.user }
func (c *privateChat) HubURL() string { return c.hubURL }

func (c *privateChat) Messages(max int) []domain.Message { return c.cache.Messages(max) }
func (c *privateChat) UnreadCount() int                  { return c.cache.UnreadCount() }
func (c *privateChat) SetRead()                          { c.cache.SetRead() }
func (c *privateChat) Clear()                            { c.cache.Clear() }

func (c *privateChat) SendMessage(text string) error {
	if text == "" {
		return domain.Invalidf("message text empty")
	}
	msg := c.cache.append("me", text, false)
	c.manager.notify(func(l domain.PrivateChatListener) { l.ChatMessage(c, msg) })
	return nil
}

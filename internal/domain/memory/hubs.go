package memory

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dcgate/dcgate/internal/domain"
)

// HubManager implements domain.HubManager.
type HubManager struct {
	log *slog.Logger

	mu        sync.RWMutex
	nextID    uint32
	hubs      map[uint32]*hub
	byURL     map[string]*hub
	listeners []domain.HubListener
	nicks     []string
}

func newHubManager(log *slog.Logger) *HubManager {
	return &HubManager{
		log:   log,
		hubs:  make(map[uint32]*hub),
		byURL: make(map[string]*hub),
	}
}

// SetNicks seeds the nick list served by SearchNicks.
func (m *HubManager) SetNicks(nicks []string) {
	m.mu.Lock()
	m.nicks = nicks
	m.mu.Unlock()
}

func (m *HubManager) Hubs() []domain.Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Hub, 0, len(m.hubs))
	for _, h := range m.hubs {
		out = append(out, h)
	}
	return out
}

func (m *HubManager) Connect(url string) (domain.Hub, error) {
	m.mu.Lock()
	if _, ok := m.byURL[url]; ok {
		m.mu.Unlock()
		return nil, domain.Existsf("hub %s", url)
	}
	m.nextID++
	h := &hub{
		manager: m,
		id:      m.nextID,
		url:     url,
		name:    url,
		state:   "connecting",
	}
	m.hubs[h.id] = h
	m.byURL[url] = h
	m.mu.Unlock()

	m.notify(func(l domain.HubListener) { l.HubCreated(h) })

	// The in-memory engine has no network; connections establish instantly.
	h.setState("connected")
	return h, nil
}

func (m *HubManager) Disconnect(id uint32) error {
	m.mu.Lock()
	h, ok := m.hubs[id]
	if ok {
		delete(m.hubs, id)
		delete(m.byURL, h.url)
	}
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundf("hub %d", id)
	}
	m.notify(func(l domain.HubListener) { l.HubRemoved(h) })
	return nil
}

func (m *HubManager) SearchNicks(pattern string, maxResults int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	lower := strings.ToLower(pattern)
	for _, nick := range m.nicks {
		if strings.Contains(strings.ToLower(nick), lower) {
			out = append(out, nick)
			if maxResults > 0 && len(out) >= maxResults {
				break
			}
		}
	}
	return out
}

func (m *HubManager) AddHubListener(l domain.HubListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *HubManager) RemoveHubListener(l domain.HubListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *HubManager) notify(fn func(domain.HubListener)) {
	m.mu.RLock()
	listeners := make([]domain.HubListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}

// hub implements domain.Hub.
type hub struct {
	manager *HubManager
	id      uint32
	url     string

	mu          sync.RWMutex
	name        string
	description string
	userCount   int
	shareSize   int64
	state       string
	redirectURL string
	favorite    bool

	cache messageCache
}

func (h *hub) ID() uint32   { return h.id }
func (h *hub) URL() string  { return h.url }
func (h *hub) Name() string { h.mu.RLock(); defer h.mu.RUnlock(); return h.name }

func (h *hub) Description() string { h.mu.RLock(); defer h.mu.RUnlock(); return h.description }
func (h *hub) UserCount() int      { h.mu.RLock(); defer h.mu.RUnlock(); return h.userCount }
func (h *hub) ShareSize() int64    { h.mu.RLock(); defer h.mu.RUnlock(); return h.shareSize }
func (h *hub) ConnectState() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}
func (h *hub) RedirectURL() string { h.mu.RLock(); defer h.mu.RUnlock(); return h.redirectURL }

// SetIdentity updates hub metadata and fires HubUpdated.
func (h *hub) SetIdentity(name, description string, userCount int, shareSize int64) {
	h.mu.Lock()
	h.name = name
	h.description = description
	h.userCount = userCount
	h.shareSize = shareSize
	h.mu.Unlock()
	h.manager.notify(func(l domain.HubListener) { l.HubUpdated(h) })
}

func (h *hub) setState(state string) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	h.manager.notify(func(l domain.HubListener) { l.HubUpdated(h) })
}

func (h *hub) Reconnect() { h.setState("connecting"); h.setState("connected") }

func (h *hub) Redirect() {
	h.mu.RLock()
	target := h.redirectURL
	h.mu.RUnlock()
	if target == "" {
		return
	}
	h.setState("connecting")
	h.setState("connected")
}

func (h *hub) Password(password string) { h.setState("connected") }

func (h *hub) Favorite() error {
	h.mu.Lock()
	if h.favorite {
		h.mu.Unlock()
		return domain.Existsf("favorite hub %s", h.url)
	}
	h.favorite = true
	h.mu.Unlock()
	return nil
}

func (h *hub) Messages(max int) []domain.Message { return h.cache.Messages(max) }
func (h *hub) UnreadCount() int                  { return h.cache.UnreadCount() }
func (h *hub) SetRead()                          { h.cache.SetRead() }
func (h *hub) Clear()                            { h.cache.Clear() }

func (h *hub) SendMessage(text string) error {
	if text == "" {
		return domain.Invalidf("message text empty")
	}
	msg := h.cache.append("me", text, false)
	h.manager.notify(func(l domain.HubListener) { l.HubChatMessage(h, msg) })
	return nil
}

func (h *hub) SendStatusMessage(text string) error {
	if text == "" {
		return domain.Invalidf("message text empty")
	}
	msg := h.cache.append("", text, true)
	h.manager.notify(func(l domain.HubListener) { l.HubStatusMessage(h, msg) })
	return nil
}

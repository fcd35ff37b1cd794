package memory

import (
	"sync"

	"github.com/dcgate/dcgate/internal/domain"
)

// FilelistManager implements domain.FilelistManager.
type FilelistManager struct {
	engine *Engine

	mu        sync.RWMutex
	lists     map[string]*filelist
	listeners []domain.FilelistListener
}

func newFilelistManager(e *Engine) *FilelistManager {
	return &FilelistManager{
		engine: e,
		lists:  make(map[string]*filelist),
	}
}

func (m *FilelistManager) Filelists() []domain.Filelist {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Filelist, 0, len(m.lists))
	for _, fl := range m.lists {
		out = append(out, fl)
	}
	return out
}

func (m *FilelistManager) Open(cid, directory string) (domain.Filelist, error) {
	nick, known := m.engine.userNick(cid)
	if !known {
		return nil, domain.NotFoundf("user %s", cid)
	}
	if directory == "" {
		directory = "/"
	}

	m.mu.Lock()
	if _, ok := m.lists[cid]; ok {
		m.mu.Unlock()
		return nil, domain.Existsf("filelist %s", cid)
	}
	fl := &filelist{
		manager:   m,
		cid:       cid,
		user:      nick,
		directory: directory,
		state:     "download_pending",
	}
	m.lists[cid] = fl
	m.mu.Unlock()

	m.notify(func(l domain.FilelistListener) { l.FilelistCreated(fl) })

	// No network; downloads complete instantly.
	fl.setState("loaded")
	return fl, nil
}

func (m *FilelistManager) Close(cid string) error {
	m.mu.Lock()
	fl, ok := m.lists[cid]
	delete(m.lists, cid)
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundf("filelist %s", cid)
	}
	m.notify(func(l domain.FilelistListener) { l.FilelistRemoved(fl) })
	return nil
}

func (m *FilelistManager) AddFilelistListener(l domain.FilelistListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *FilelistManager) RemoveFilelistListener(l domain.FilelistListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *FilelistManager) notify(fn func(domain.FilelistListener)) {
	m.mu.RLock()
	listeners := make([]domain.FilelistListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}

// filelist implements domain.Filelist.
type filelist struct {
	manager *FilelistManager
	cid     string
	user    string

	mu        sync.RWMutex
	directory string
	state     string
}

func (fl *filelist) CID() string  { return fl.cid }
func (fl *filelist) User() string { return fl.user }

func (fl *filelist) Directory() string {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.directory
}

func (fl *filelist) State() string {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.state
}

func (fl *filelist) setState(state string) {
	fl.mu.Lock()
	fl.state = state
	fl.mu.Unlock()
	fl.manager.notify(func(l domain.FilelistListener) { l.FilelistUpdated(fl) })
}

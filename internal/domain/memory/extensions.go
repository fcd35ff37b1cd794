package memory

import (
	"sort"
	"sync"

	"github.com/dcgate/dcgate/internal/domain"
)

// ExtensionManager implements domain.ExtensionManager.
type ExtensionManager struct {
	mu         sync.RWMutex
	extensions map[string]domain.Extension
	listeners  []domain.ExtensionListener
}

func newExtensionManager() *ExtensionManager {
	return &ExtensionManager{
		extensions: make(map[string]domain.Extension),
	}
}

func (m *ExtensionManager) Extensions() []domain.Extension {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Extension, 0, len(m.extensions))
	for _, ext := range m.extensions {
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *ExtensionManager) Extension(name string) (domain.Extension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ext, ok := m.extensions[name]
	if !ok {
		return domain.Extension{}, domain.NotFoundf("extension %s", name)
	}
	return ext, nil
}

func (m *ExtensionManager) Install(name, url string) (domain.Extension, error) {
	if name == "" {
		return domain.Extension{}, domain.Invalidf("extension name empty")
	}

	m.mu.Lock()
	if _, ok := m.extensions[name]; ok {
		m.mu.Unlock()
		return domain.Extension{}, domain.Existsf("extension %s", name)
	}
	ext := domain.Extension{Name: name}
	m.extensions[name] = ext
	m.mu.Unlock()

	m.notify(func(l domain.ExtensionListener) { l.ExtensionAdded(ext) })
	return ext, nil
}

func (m *ExtensionManager) Remove(name string) error {
	m.mu.Lock()
	ext, ok := m.extensions[name]
	delete(m.extensions, name)
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundf("extension %s", name)
	}
	m.notify(func(l domain.ExtensionListener) { l.ExtensionRemoved(ext) })
	return nil
}

func (m *ExtensionManager) Start(name string) error {
	m.mu.Lock()
	ext, ok := m.extensions[name]
	if ok {
		if ext.Running {
			m.mu.Unlock()
			return domain.Existsf("extension %s already running", name)
		}
		ext.Running = true
		m.extensions[name] = ext
	}
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundf("extension %s", name)
	}
	m.notify(func(l domain.ExtensionListener) { l.ExtensionStarted(ext) })
	return nil
}

func (m *ExtensionManager) Stop(name string) error {
	m.mu.Lock()
	ext, ok := m.extensions[name]
	if ok {
		ext.Running = false
		m.extensions[name] = ext
	}
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundf("extension %s", name)
	}
	m.notify(func(l domain.ExtensionListener) { l.ExtensionStopped(ext) })
	return nil
}

func (m *ExtensionManager) AddExtensionListener(l domain.ExtensionListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *ExtensionManager) RemoveExtensionListener(l domain.ExtensionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *ExtensionManager) notify(fn func(domain.ExtensionListener)) {
	m.mu.RLock()
	listeners := make([]domain.ExtensionListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}

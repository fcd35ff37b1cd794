package memory

import (
	"sync"
	"time"

	"github.com/dcgate/dcgate/internal/domain"
)

// SystemMonitor implements domain.SystemMonitor.
type SystemMonitor struct {
	started time.Time

	mu        sync.RWMutex
	away      bool
	stats     domain.Stats
	listeners []domain.SystemListener
}

func newSystemMonitor() *SystemMonitor {
	return &SystemMonitor{started: time.Now()}
}

// SetStats replaces the reported counters. Uptime is derived, not stored.
func (m *SystemMonitor) SetStats(stats domain.Stats) {
	m.mu.Lock()
	m.stats = stats
	m.mu.Unlock()
}

func (m *SystemMonitor) Stats() domain.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := m.stats
	stats.UptimeSeconds = int64(time.Since(m.started).Seconds())
	return stats
}

func (m *SystemMonitor) Away() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.away
}

func (m *SystemMonitor) SetAway(away bool) {
	m.mu.Lock()
	changed := m.away != away
	m.away = away
	listeners := make([]domain.SystemListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l.AwayChanged(away)
	}
}

func (m *SystemMonitor) AddSystemListener(l domain.SystemListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *SystemMonitor) RemoveSystemListener(l domain.SystemListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

package api

import (
	"log/slog"
	"net/http"

	"github.com/dcgate/dcgate/internal/domain"
)

// SystemModule exposes engine-wide state: counters and the away flag.
type SystemModule struct {
	*Module
	system domain.SystemMonitor
}

// NewSystemModule builds the system module.
func NewSystemModule(log *slog.Logger, system domain.SystemMonitor) *SystemModule {
	m := &SystemModule{
		Module: NewModule(log.With("module", "system"), 0),
		system: system,
	}
	m.CreateSubscription("away_state")

	m.Handle("stats", http.MethodGet, nil, false, m.handleGetStats)
	m.Handle("away", http.MethodGet, nil, false, m.handleGetAway)
	m.Handle("away", http.MethodPost, nil, true, m.handleSetAway)

	m.system.AddSystemListener(m)
	return m
}

// Destroy unregisters the engine listener.
func (m *SystemModule) Destroy() {
	m.system.RemoveSystemListener(m)
}

func (m *SystemModule) handleGetStats(req *Request) (any, error) {
	return m.system.Stats(), nil
}

func (m *SystemModule) handleGetAway(req *Request) (any, error) {
	return map[string]any{"away": m.system.Away()}, nil
}

func (m *SystemModule) handleSetAway(req *Request) (any, error) {
	var body struct {
		Away *bool `json:"away"`
	}
	if err := req.DecodeBody(&body); err != nil {
		return nil, err
	}
	if body.Away == nil {
		return nil, domain.Invalidf("field away: missing")
	}
	m.system.SetAway(*body.Away)
	return nil, nil
}

// AwayChanged announces a change of the engine's away state.
func (m *SystemModule) AwayChanged(away bool) {
	m.Send("away_state", map[string]any{"away": away})
}

package connectivity

import (
	"context"
	"sync"
	"time"

	"tindahan-pos/pkg/logger"
)

// ProbeFunc checks actual reachability of the backend. A nil error means the
// health endpoint answered.
type ProbeFunc func(ctx context.Context) error

// State is a snapshot of the monitor.
type State struct {
	Online         bool       `json:"online"`
	LastChecked    time.Time  `json:"last_checked"`
	LastOnlineTime *time.Time `json:"last_online_time,omitempty"`
}

// Monitor tracks whether the backend is actually reachable. The platform's
// own online flag only reports link-layer presence, so an "online" report is
// verified with a probe before the state flips; an "offline" report is
// trusted immediately. A periodic probe catches captive portals and silent
// server outages that never fire a platform event.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration
	clock    func() time.Time
	log      *logger.Logger

	mu             sync.Mutex
	online         bool
	lastChecked    time.Time
	lastOnlineTime time.Time
	listeners      []func(online bool)
}

func NewMonitor(probe ProbeFunc, interval time.Duration, log *logger.Logger) *Monitor {
	return &Monitor{
		probe:    probe,
		interval: interval,
		clock:    time.Now,
		log:      log,
	}
}

// OnChange registers a listener invoked on every online/offline edge.
// Listeners run outside the monitor lock and must not block for long.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// IsOnline returns the last known state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Snapshot returns the full monitor state.
func (m *Monitor) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := State{Online: m.online, LastChecked: m.lastChecked}
	if !m.lastOnlineTime.IsZero() {
		t := m.lastOnlineTime
		s.LastOnlineTime = &t
	}
	return s
}

// Refresh performs an immediate probe and returns the resulting state.
func (m *Monitor) Refresh(ctx context.Context) bool {
	err := m.probe(ctx)
	return m.setState(err == nil)
}

// ReportOnline handles a platform "online" event. The flag is not trusted
// directly; the state only flips if the probe confirms reachability.
func (m *Monitor) ReportOnline(ctx context.Context) bool {
	return m.Refresh(ctx)
}

// ReportOffline handles a platform "offline" event. No probe needed to
// confirm the absence of connectivity.
func (m *Monitor) ReportOffline() {
	m.setState(false)
}

// Run probes on a fixed interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Establish an initial state instead of assuming offline until the
	// first tick.
	m.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// setState records the probe outcome, returns the new state and notifies
// listeners when it changed.
func (m *Monitor) setState(online bool) bool {
	m.mu.Lock()
	now := m.clock()
	changed := m.online != online
	m.online = online
	m.lastChecked = now
	if online {
		m.lastOnlineTime = now
	}
	listeners := make([]func(bool), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if changed {
		if m.log != nil {
			if online {
				m.log.Infof("connectivity: backend reachable")
			} else {
				m.log.Warnf("connectivity: backend unreachable")
			}
		}
		for _, fn := range listeners {
			fn(online)
		}
	}
	return online
}

// Package netstatus tracks whether the hub is reachable and notifies
// subscribers of online/offline transitions.
package netstatus

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iudanet/packsync/internal/clock"
)

// Prober checks reachability of the hub.
//
//go:generate moq -out prober_mock.go . Prober
type Prober interface {
	Health(ctx context.Context) error
}

// Listener receives the new state on every transition.
type Listener func(online bool)

// Monitor polls a Prober. It starts in the online state.
type Monitor struct {
	prober    Prober
	scheduler clock.Scheduler
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration

	timer     clock.Timer
	listeners map[int]Listener
	nextID    int
	online    bool
	stopped   bool
	mu        sync.Mutex
}

// NewMonitor creates a monitor; call Start to begin polling.
func NewMonitor(prober Prober, scheduler clock.Scheduler, logger *slog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		prober:    prober,
		scheduler: scheduler,
		logger:    logger,
		interval:  interval,
		timeout:   5 * time.Second,
		listeners: make(map[int]Listener),
		online:    true,
	}
}

// IsOnline reports the last known state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers l for transitions. The returned func removes it.
func (m *Monitor) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// OnOnline registers f for offline -> online transitions only.
func (m *Monitor) OnOnline(f func()) func() {
	return m.Subscribe(func(online bool) {
		if online {
			f()
		}
	})
}

// Start probes immediately and then every interval.
func (m *Monitor) Start() {
	m.mu.Lock()
	m.stopped = false
	m.mu.Unlock()

	m.Check()
}

// Stop cancels polling. Listeners stay registered.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Check probes once, reports the transition if any and re-arms the poll.
func (m *Monitor) Check() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	err := m.prober.Health(ctx)
	cancel()

	if err != nil {
		m.logger.Debug("Hub health probe failed", "error", err)
	}
	m.Set(err == nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = m.scheduler.AfterFunc(m.interval, m.Check)
}

// Set forces the state, notifying listeners on change.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	listeners := make([]Listener, 0, len(m.listeners))
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("Hub reachable")
	} else {
		m.logger.Warn("Hub unreachable, working offline")
	}

	for _, l := range listeners {
		l(online)
	}
}

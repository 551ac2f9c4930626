// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"sync"
)

// Monitor derives the single offline signal from OS network reachability and
// the user's manual "go offline" toggle:
//
//	offline = manualOffline || !networkReachable
//
// Subscribers are notified only when the derived value changes (an edge),
// never on repeated reports of the same state. There is no debounce; the
// platform reachability watcher feeds SetNetworkReachable directly.
type Monitor struct {
	mu        sync.Mutex
	reachable bool
	manual    bool
	nextSub   int
	subs      map[int]func(offline bool)
}

// NewMonitor returns a monitor that assumes the network is reachable until
// the platform watcher reports otherwise.
func NewMonitor() *Monitor {
	return &Monitor{
		reachable: true,
		subs:      make(map[int]func(offline bool)),
	}
}

// Offline reports the current derived offline signal.
func (m *Monitor) Offline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offlineLocked()
}

func (m *Monitor) offlineLocked() bool {
	return m.manual || !m.reachable
}

// ManualOffline reports the user toggle independent of real connectivity.
func (m *Monitor) ManualOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manual
}

// SetNetworkReachable records an OS-level reachability report.
func (m *Monitor) SetNetworkReachable(reachable bool) {
	m.update(func() { m.reachable = reachable })
}

// SetManualOffline sets the user-facing "go offline" toggle.
func (m *Monitor) SetManualOffline(manual bool) {
	m.update(func() { m.manual = manual })
}

func (m *Monitor) update(apply func()) {
	m.mu.Lock()
	before := m.offlineLocked()
	apply()
	after := m.offlineLocked()
	var handlers []func(bool)
	if before != after {
		handlers = make([]func(bool), 0, len(m.subs))
		for _, fn := range m.subs {
			handlers = append(handlers, fn)
		}
	}
	m.mu.Unlock()

	// Handlers run outside the lock so they may call back into the monitor.
	for _, fn := range handlers {
		fn(after)
	}
}

// Subscribe registers a handler for offline-signal edges and returns an
// unsubscribe func. The handler is not invoked with the current state; it
// fires on the next edge.
func (m *Monitor) Subscribe(fn func(offline bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

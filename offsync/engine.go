// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"fmt"
	"log/slog"
)

// Options configures an Engine.
type Options struct {
	// DBPath is the SQLite file backing the offline queues. Ignored when DB
	// is supplied through Store.
	DBPath string
	// Store overrides the queue store (tests use a ":memory:" store).
	Store *Store
	// API is the remote API the engine syncs against. Required.
	API RemoteAPI
	// Notifier receives sync completion notifications. Defaults to an
	// in-app recorder.
	Notifier Notifier
	// MaxAttempts bounds per-item delivery retries before quarantine.
	// Zero keeps DefaultMaxAttempts.
	MaxAttempts int
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine owns the lifecycle of the offline sync components. It is the
// dependency-injected context object handed to the app at process start and
// closed at process exit; nothing in the package relies on ambient globals.
type Engine struct {
	Store        *Store
	State        *State
	Monitor      *Monitor
	Capturer     *Capturer
	Orchestrator *Orchestrator
	Notifier     Notifier

	logger      *slog.Logger
	unsubscribe []func()
}

// NewEngine builds and wires the engine. The monitor starts in the
// reachable state; feed it from the platform reachability watcher via
// SetNetworkReachable.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("options.API is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = OpenStore(opts.DBPath)
		if err != nil {
			return nil, err
		}
	}
	if opts.MaxAttempts > 0 {
		store.SetMaxAttempts(opts.MaxAttempts)
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewInAppNotifier()
	}

	state := NewState()
	monitor := NewMonitor()
	capturer := NewCapturer(store, state, monitor, opts.API, logger)
	orchestrator := NewOrchestrator(store, state, monitor, opts.API, notifier, logger)

	e := &Engine{
		Store:        store,
		State:        state,
		Monitor:      monitor,
		Capturer:     capturer,
		Orchestrator: orchestrator,
		Notifier:     notifier,
		logger:       logger,
	}

	// Mirror the derived offline signal into the shared state.
	e.unsubscribe = append(e.unsubscribe, monitor.Subscribe(func(offline bool) {
		state.setOffline(offline)
	}))
	// An offline -> online edge starts a sync run.
	e.unsubscribe = append(e.unsubscribe, orchestrator.Attach(ctx))

	// Items left over from a previous launch count as pending immediately.
	if err := state.RefreshPending(ctx, store); err != nil {
		store.Close()
		return nil, err
	}
	state.setOffline(monitor.Offline())

	return e, nil
}

// Snapshot exposes the read-only UI surface: offline flag, pending count,
// sync status/progress and last sync time.
func (e *Engine) Snapshot() Snapshot {
	return e.State.Snapshot()
}

// SyncNow is the explicit user-initiated sync trigger.
func (e *Engine) SyncNow(ctx context.Context) (*RunReport, error) {
	return e.Orchestrator.SyncNow(ctx)
}

// SetNetworkReachable feeds an OS reachability report into the monitor.
func (e *Engine) SetNetworkReachable(reachable bool) {
	e.Monitor.SetNetworkReachable(reachable)
}

// SetManualOffline flips the user's "go offline" toggle.
func (e *Engine) SetManualOffline(manual bool) {
	e.Monitor.SetManualOffline(manual)
}

// Close unhooks subscriptions and closes the store.
func (e *Engine) Close() error {
	for _, fn := range e.unsubscribe {
		fn()
	}
	e.unsubscribe = nil
	return e.Store.Close()
}

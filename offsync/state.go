// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"sync"
	"time"
)

// SyncStatus describes the orchestrator's current position. When Syncing is
// false the engine is idle and Current/Total are zero.
type SyncStatus struct {
	Syncing bool
	Current int
	Total   int
}

// Snapshot is a point-in-time copy of the offline state for the UI layer.
type Snapshot struct {
	Offline      bool
	PendingCount int
	Sync         SyncStatus
	LastSyncAt   *time.Time
}

// State is the process-wide offline state: the single source of truth read
// by the capture path and the UI. It is explicitly constructed and injected
// into the components that need it; only the connectivity monitor mutates
// the offline flag and only the orchestrator transitions the sync status.
type State struct {
	mu         sync.Mutex
	offline    bool
	pending    int
	status     SyncStatus
	lastSyncAt *time.Time
}

// NewState returns an empty state (online, no pending items, idle).
func NewState() *State {
	return &State{}
}

// Snapshot returns a copy safe to hand to the UI.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Offline:      s.offline,
		PendingCount: s.pending,
		Sync:         s.status,
	}
	if s.lastSyncAt != nil {
		t := *s.lastSyncAt
		snap.LastSyncAt = &t
	}
	return snap
}

// Offline reports the derived offline flag.
func (s *State) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// RefreshPending recomputes the pending count from the store. The count is
// never incremented or decremented speculatively, so it cannot drift from
// the queues after a crash.
func (s *State) RefreshPending(ctx context.Context, store *Store) error {
	count, err := store.CountUndelivered(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.pending = count
	s.mu.Unlock()
	return nil
}

func (s *State) setOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

func (s *State) setSyncing(total int) {
	s.mu.Lock()
	s.status = SyncStatus{Syncing: true, Current: 0, Total: total}
	s.mu.Unlock()
}

func (s *State) setSyncProgress(current int) {
	s.mu.Lock()
	if s.status.Syncing {
		s.status.Current = current
	}
	s.mu.Unlock()
}

func (s *State) setIdle() {
	s.mu.Lock()
	s.status = SyncStatus{}
	s.mu.Unlock()
}

func (s *State) setLastSyncAt(t time.Time) {
	s.mu.Lock()
	s.lastSyncAt = &t
	s.mu.Unlock()
}

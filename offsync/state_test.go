package offsync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestState_SnapshotIsolation(t *testing.T) {
	state := NewState()
	state.setOffline(true)
	state.setSyncing(4)
	state.setSyncProgress(2)
	now := time.Now().UTC()
	state.setLastSyncAt(now)

	snap := state.Snapshot()
	require.True(t, snap.Offline)
	require.Equal(t, SyncStatus{Syncing: true, Current: 2, Total: 4}, snap.Sync)
	require.NotNil(t, snap.LastSyncAt)
	require.Equal(t, now, *snap.LastSyncAt)

	// Mutating the snapshot must not touch the live state.
	*snap.LastSyncAt = time.Time{}
	require.Equal(t, now, *state.Snapshot().LastSyncAt)
}

func TestState_IdleResetsProgress(t *testing.T) {
	state := NewState()
	state.setSyncing(3)
	state.setSyncProgress(3)
	state.setIdle()

	require.Equal(t, SyncStatus{}, state.Snapshot().Sync)

	// Progress updates are ignored while idle.
	state.setSyncProgress(1)
	require.Equal(t, SyncStatus{}, state.Snapshot().Sync)
}

func TestState_RefreshPendingFromStore(t *testing.T) {
	store := newTestStore(t)
	state := NewState()
	ctx := context.Background()

	require.NoError(t, state.RefreshPending(ctx, store))
	require.Equal(t, 0, state.Snapshot().PendingCount)

	_, err := store.EnqueueScan(ctx, &QueuedScan{Barcode: "1", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	_, err = store.EnqueueAction(ctx, ActionPriceWorkflow, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, state.RefreshPending(ctx, store))
	require.Equal(t, 2, state.Snapshot().PendingCount)
}

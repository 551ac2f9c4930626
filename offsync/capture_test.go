package offsync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCapturer(t *testing.T, api RemoteAPI) (*Capturer, *Store, *State, *Monitor) {
	t.Helper()
	store := newTestStore(t)
	state := NewState()
	monitor := NewMonitor()
	return NewCapturer(store, state, monitor, api, nil), store, state, monitor
}

func TestCaptureScan_OfflineSynthesizesNoMatch(t *testing.T) {
	api := newStubAPI()
	capturer, store, state, monitor := newTestCapturer(t, api)
	monitor.SetManualOffline(true)
	ctx := context.Background()

	record, err := capturer.CaptureScan(ctx, "4711", ScanMethodBarcode, &Location{Lat: 1, Lng: 2})
	require.NoError(t, err)

	// No server round trip happened: lowest-confidence tier, no match data.
	require.Equal(t, ScanStatusNoMatch, record.Status)
	require.Nil(t, record.Match)
	require.Equal(t, "4711", record.Barcode)
	require.NotEmpty(t, record.ID)
	require.Equal(t, 0, api.scanSubmissions(record.ID))

	scans, _, err := store.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	require.Equal(t, record.ID, scans[0].ID)

	var snapshot ScanRecord
	require.NoError(t, json.Unmarshal(scans[0].Payload, &snapshot))
	require.Equal(t, record.ID, snapshot.ID)

	require.Equal(t, 1, state.Snapshot().PendingCount)
}

func TestCaptureScan_OnlineGoesDirect(t *testing.T) {
	api := newStubAPI()
	capturer, store, state, _ := newTestCapturer(t, api)
	ctx := context.Background()

	record, err := capturer.CaptureScan(ctx, "123", ScanMethodLabel, nil)
	require.NoError(t, err)
	require.Equal(t, ScanStatusMatched, record.Status)
	require.NotNil(t, record.Match)
	require.Equal(t, 1, api.scanSubmissions(record.ID))

	scans, _, err := store.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Empty(t, scans)
	require.Equal(t, 0, state.Snapshot().PendingCount)
}

func TestCaptureScan_NetworkFlickerFallsBackToQueue(t *testing.T) {
	api := newStubAPI()
	api.failScan = func(ScanSubmission) error {
		return &NetworkError{Err: errRemoteDown}
	}
	capturer, store, state, _ := newTestCapturer(t, api)
	ctx := context.Background()

	// Monitor says online but the request fails in flight: the capture must
	// still succeed from the user's point of view.
	record, err := capturer.CaptureScan(ctx, "999", ScanMethodBarcode, nil)
	require.NoError(t, err)
	require.Equal(t, ScanStatusNoMatch, record.Status)

	scans, _, err := store.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	require.Equal(t, 1, state.Snapshot().PendingCount)
}

func TestCaptureScan_ApplicationErrorPropagates(t *testing.T) {
	api := newStubAPI()
	api.failScan = func(ScanSubmission) error { return errRemoteDown }
	capturer, store, _, _ := newTestCapturer(t, api)
	ctx := context.Background()

	_, err := capturer.CaptureScan(ctx, "888", ScanMethodBarcode, nil)
	require.Error(t, err)
	require.False(t, IsNetworkError(err))

	// A server-side rejection is not queued for replay.
	scans, _, err := store.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Empty(t, scans)
}

func TestCaptureAction_OfflineQueuesPayload(t *testing.T) {
	api := newStubAPI()
	capturer, store, state, monitor := newTestCapturer(t, api)
	monitor.SetNetworkReachable(false)
	ctx := context.Background()

	id, err := capturer.CaptureAction(ctx, ActionVoiceNoteUpdate, map[string]any{
		"noteId":  "note-7",
		"company": "Atelier Morel",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, actions, err := store.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, ActionVoiceNoteUpdate, actions[0].Type)
	require.JSONEq(t, `{"noteId":"note-7","company":"Atelier Morel"}`, string(actions[0].Payload))
	require.Equal(t, 1, state.Snapshot().PendingCount)
}

func TestCaptureAction_NetworkFlickerFallsBackToQueue(t *testing.T) {
	api := newStubAPI()
	api.failAction = func(QueuedAction) error {
		return &NetworkError{Err: errRemoteDown}
	}
	capturer, store, _, _ := newTestCapturer(t, api)
	ctx := context.Background()

	id, err := capturer.CaptureAction(ctx, ActionPriceWorkflow, map[string]any{"qty": 5})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, actions, err := store.ListUndelivered(ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
}

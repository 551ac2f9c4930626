package offsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func staticToken(token string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return token, nil }
}

func TestAPIClient_SubmitScan(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotKey string
	var gotBody ScanSubmission

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ScanRecord{
			ID:      gotBody.ID,
			Barcode: gotBody.Barcode,
			Status:  ScanStatusMatched,
			Match:   &ProductMatch{ID: "moly-1", Name: "Molybdène 100g", Confidence: 95},
		})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, staticToken("tok-123"))
	record, err := client.SubmitScan(context.Background(), ScanSubmission{
		ID:         "scan-1",
		Barcode:    "3254560000117",
		ScanMethod: ScanMethodBarcode,
	})
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/v1/scans", gotPath)
	require.Equal(t, "Bearer tok-123", gotAuth)
	require.Equal(t, "scan-1", gotKey)
	require.Equal(t, "scan-1", gotBody.ID)
	require.Equal(t, "3254560000117", gotBody.Barcode)

	require.Equal(t, ScanStatusMatched, record.Status)
	require.NotNil(t, record.Match)
	require.Equal(t, "moly-1", record.Match.ID)
}

func TestAPIClient_SubmitAction_Routing(t *testing.T) {
	type call struct{ method, path, key string }
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path, r.Header.Get("Idempotency-Key")})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, staticToken("tok"))
	ctx := context.Background()

	err := client.SubmitAction(ctx, QueuedAction{
		ID:      "act-1",
		Type:    ActionPriceWorkflow,
		Payload: json.RawMessage(`{"productId":"moly-1","price":12.5}`),
	})
	require.NoError(t, err)

	err = client.SubmitAction(ctx, QueuedAction{
		ID:      "act-2",
		Type:    ActionVoiceNoteUpdate,
		Payload: json.RawMessage(`{"noteId":"note-7","transcript":"rappeler le client"}`),
	})
	require.NoError(t, err)

	require.Equal(t, []call{
		{http.MethodPost, "/v1/workflows/price", "act-1"},
		{http.MethodPatch, "/v1/voice-notes/note-7", "act-2"},
	}, calls)
}

func TestAPIClient_SubmitAction_BadPayloads(t *testing.T) {
	client := NewAPIClient("http://unused.invalid", staticToken("tok"))
	ctx := context.Background()

	err := client.SubmitAction(ctx, QueuedAction{ID: "x", Type: "mystery", Payload: json.RawMessage(`{}`)})
	require.ErrorContains(t, err, "unknown action type")

	err = client.SubmitAction(ctx, QueuedAction{ID: "x", Type: ActionVoiceNoteUpdate, Payload: json.RawMessage(`{"transcript":"a"}`)})
	require.ErrorContains(t, err, "missing noteId")
	require.False(t, IsNetworkError(err), "payload errors are not transport failures")
}

func TestAPIClient_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewAPIClient(srv.URL, staticToken("tok"))
	_, err := client.SubmitScan(context.Background(), ScanSubmission{ID: "s", Barcode: "1"})
	require.Error(t, err)
	require.True(t, IsNetworkError(err))
}

func TestAPIClient_ServerRejectionIsNotNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"barcode required"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, staticToken("tok"))
	_, err := client.SubmitScan(context.Background(), ScanSubmission{ID: "s"})
	require.Error(t, err)
	require.False(t, IsNetworkError(err))
	require.ErrorContains(t, err, "status 422")
	require.ErrorContains(t, err, "barcode required")
}

package offsync

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

// stubAPI is an in-memory RemoteAPI that deduplicates by client identifier,
// matching the contract the real backend must honor.
type stubAPI struct {
	mu        sync.Mutex
	scans     map[string]int // submission count per scan ID
	scanSubs  map[string]ScanSubmission
	actions   map[string]int // submission count per action ID
	delivered []string       // "action:<id>" / "scan:<id>" in arrival order

	failScan   func(sub ScanSubmission) error
	failAction func(action QueuedAction) error

	// gate, when non-nil, blocks every submission until it is closed.
	gate chan struct{}

	// onSubmit, when non-nil, runs before any submission is recorded.
	onSubmit func()
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		scans:    make(map[string]int),
		scanSubs: make(map[string]ScanSubmission),
		actions:  make(map[string]int),
	}
}

func (a *stubAPI) SubmitScan(ctx context.Context, sub ScanSubmission) (*ScanRecord, error) {
	if a.onSubmit != nil {
		a.onSubmit()
	}
	if a.gate != nil {
		<-a.gate
	}
	if a.failScan != nil {
		if err := a.failScan(sub); err != nil {
			return nil, err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scans[sub.ID]++
	a.scanSubs[sub.ID] = sub
	if a.scans[sub.ID] == 1 {
		a.delivered = append(a.delivered, "scan:"+sub.ID)
	}
	return &ScanRecord{
		ID:         sub.ID,
		Barcode:    sub.Barcode,
		Status:     ScanStatusMatched,
		ScanMethod: sub.ScanMethod,
		Location:   sub.Location,
		Match:      &ProductMatch{ID: "moly-test", Confidence: 90},
	}, nil
}

func (a *stubAPI) SubmitAction(ctx context.Context, action QueuedAction) error {
	if a.onSubmit != nil {
		a.onSubmit()
	}
	if a.gate != nil {
		<-a.gate
	}
	if a.failAction != nil {
		if err := a.failAction(action); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions[action.ID]++
	if a.actions[action.ID] == 1 {
		a.delivered = append(a.delivered, "action:"+action.ID)
	}
	return nil
}

func (a *stubAPI) deliveredOrder() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.delivered))
	copy(out, a.delivered)
	return out
}

func (a *stubAPI) scanSubmissions(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scans[id]
}

func (a *stubAPI) scanSubmission(id string) (ScanSubmission, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sub, ok := a.scanSubs[id]
	return sub, ok
}

var errRemoteDown = fmt.Errorf("remote endpoint rejected the item")

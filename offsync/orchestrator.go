// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ItemKind distinguishes queue membership in run reports.
type ItemKind string

const (
	ItemKindAction ItemKind = "action"
	ItemKindScan   ItemKind = "scan"
)

// ItemResult is the per-item outcome of a sync run. Failures are absorbed
// into the report instead of aborting the run or propagating to the UI.
type ItemResult struct {
	Kind        ItemKind
	ID          string
	Delivered   bool
	Quarantined bool
	Err         error
}

// RunReport summarizes one complete pass over a snapshot of undelivered
// items. Total is frozen when the run starts; items enqueued mid-run wait
// for the next run.
type RunReport struct {
	Total      int
	Delivered  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
	Items      []ItemResult
}

// Orchestrator drains both offline queues against the remote API. It is
// single-flight: a trigger while a run is in progress is a no-op, and a run
// always ends back in the idle state regardless of per-item failures.
type Orchestrator struct {
	store    *Store
	state    *State
	monitor  *Monitor
	api      RemoteAPI
	notifier Notifier
	logger   *slog.Logger

	running int32
}

// NewOrchestrator wires the sync orchestrator. notifier may be nil.
func NewOrchestrator(store *Store, state *State, monitor *Monitor, api RemoteAPI, notifier Notifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		state:    state,
		monitor:  monitor,
		api:      api,
		notifier: notifier,
		logger:   logger,
	}
}

// Attach subscribes the orchestrator to the monitor's offline signal so that
// an offline-to-online edge starts a sync run. Returns the unsubscribe func.
func (o *Orchestrator) Attach(ctx context.Context) (unsubscribe func()) {
	return o.monitor.Subscribe(func(offline bool) {
		if offline {
			return
		}
		go func() {
			if _, err := o.SyncNow(ctx); err != nil {
				o.logger.Warn("automatic sync run failed", "error", err)
			}
		}()
	})
}

// SyncNow performs one sync run. It is a no-op returning (nil, nil) when a
// run is already in flight or the device is offline. The returned report
// lists every item outcome; per-item submission failures never surface as
// an error from SyncNow. Store failures do: without the store, delivery
// cannot be recorded, so the run aborts and the error propagates.
func (o *Orchestrator) SyncNow(ctx context.Context) (*RunReport, error) {
	if o.monitor.Offline() {
		o.logger.Debug("sync requested while offline, ignoring")
		return nil, nil
	}
	if !atomic.CompareAndSwapInt32(&o.running, 0, 1) {
		o.logger.Debug("sync already in progress, ignoring trigger")
		return nil, nil
	}
	defer atomic.StoreInt32(&o.running, 0)

	scans, actions, err := o.store.ListUndelivered(ctx)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		Total:     len(actions) + len(scans),
		StartedAt: time.Now().UTC(),
	}
	if report.Total == 0 {
		// Idle -> Idle: no progress events, no completion notification.
		report.FinishedAt = report.StartedAt
		return report, nil
	}

	o.state.setSyncing(report.Total)
	defer o.state.setIdle()

	o.logger.Info("sync run started", "actions", len(actions), "scans", len(scans))

	// Actions drain before scans (fixed priority) so a CRM update queued
	// after its parent scan lands after that scan on the server, and each
	// queue replays oldest first. Submission failures are absorbed per
	// item; a store failure aborts the run because nothing can be recorded
	// reliably without it.
	current := 0
	for i := range actions {
		result, err := o.deliverAction(ctx, &actions[i])
		if err != nil {
			return nil, err
		}
		report.Items = append(report.Items, result)
		if result.Delivered {
			current++
			report.Delivered++
			o.state.setSyncProgress(current)
		} else {
			report.Failed++
		}
	}
	for i := range scans {
		result, err := o.deliverScan(ctx, &scans[i])
		if err != nil {
			return nil, err
		}
		report.Items = append(report.Items, result)
		if result.Delivered {
			current++
			report.Delivered++
			o.state.setSyncProgress(current)
		} else {
			report.Failed++
		}
	}

	o.state.setLastSyncAt(time.Now().UTC())
	if err := o.state.RefreshPending(ctx, o.store); err != nil {
		o.logger.Warn("failed to refresh pending count after sync", "error", err)
	}

	if report.Delivered > 0 && o.notifier != nil {
		o.notifier.Notify(syncCompleteNotification(report.Delivered))
	}

	report.FinishedAt = time.Now().UTC()
	o.logger.Info("sync run finished",
		"delivered", report.Delivered, "failed", report.Failed, "total", report.Total)
	return report, nil
}

func (o *Orchestrator) deliverAction(ctx context.Context, action *QueuedAction) (ItemResult, error) {
	result := ItemResult{Kind: ItemKindAction, ID: action.ID}
	if err := o.api.SubmitAction(ctx, *action); err != nil {
		result.Err = err
		quarantined, recordErr := o.store.RecordActionFailure(ctx, action.ID)
		if recordErr != nil {
			return result, fmt.Errorf("failed to record failure of action %s: %w", action.ID, recordErr)
		}
		result.Quarantined = quarantined
		o.logFailure("action", action.ID, err, quarantined)
		return result, nil
	}
	if err := o.store.MarkActionDelivered(ctx, action.ID); err != nil {
		// The remote accepted it; the replayed delivery on the next run is
		// safe because the endpoint deduplicates on the client ID.
		return result, fmt.Errorf("failed to mark action %s delivered: %w", action.ID, err)
	}
	result.Delivered = true
	return result, nil
}

func (o *Orchestrator) deliverScan(ctx context.Context, scan *QueuedScan) (ItemResult, error) {
	result := ItemResult{Kind: ItemKindScan, ID: scan.ID}
	_, err := o.api.SubmitScan(ctx, ScanSubmission{
		ID:         scan.ID,
		Barcode:    scan.Barcode,
		ScanMethod: scan.Method,
		Location:   scan.Location,
		ScanData:   scan.Payload,
	})
	if err != nil {
		result.Err = err
		quarantined, recordErr := o.store.RecordScanFailure(ctx, scan.ID)
		if recordErr != nil {
			return result, fmt.Errorf("failed to record failure of scan %s: %w", scan.ID, recordErr)
		}
		result.Quarantined = quarantined
		o.logFailure("scan", scan.ID, err, quarantined)
		return result, nil
	}
	if err := o.store.MarkScanDelivered(ctx, scan.ID); err != nil {
		return result, fmt.Errorf("failed to mark scan %s delivered: %w", scan.ID, err)
	}
	result.Delivered = true
	return result, nil
}

func (o *Orchestrator) logFailure(kind, id string, cause error, quarantined bool) {
	if quarantined {
		o.logger.Warn("item quarantined after repeated delivery failures",
			"kind", kind, "id", id, "error", cause)
	} else {
		o.logger.Warn("item delivery failed, will retry next run",
			"kind", kind, "id", id, "error", cause)
	}
}

// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Capturer is the write path invoked when the user produces a new scan or
// action. It branches on the offline signal: online captures go straight to
// the remote API, offline captures are enqueued in the durable store and
// answered with a locally synthesized result so the UI never waits on the
// network.
type Capturer struct {
	store   *Store
	state   *State
	monitor *Monitor
	api     RemoteAPI
	logger  *slog.Logger
}

// NewCapturer wires the capture path.
func NewCapturer(store *Store, state *State, monitor *Monitor, api RemoteAPI, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{store: store, state: state, monitor: monitor, api: api, logger: logger}
}

// CaptureScan records a product scan. Offline (or when connectivity fails
// mid-flight) the returned record carries no match information and status
// ScanStatusNoMatch until reconciled by a later sync run.
func (c *Capturer) CaptureScan(ctx context.Context, barcode string, method ScanMethod, location *Location) (*ScanRecord, error) {
	if c.monitor.Offline() {
		return c.captureScanOffline(ctx, barcode, method, location)
	}

	record, err := c.api.SubmitScan(ctx, ScanSubmission{
		ID:         uuid.New().String(),
		Barcode:    barcode,
		ScanMethod: method,
		Location:   location,
	})
	if err != nil {
		if !IsNetworkError(err) {
			return nil, err
		}
		// Connectivity flickered mid-flight. The scan must still succeed
		// from the user's point of view, so degrade to the offline path.
		c.logger.Warn("scan submission failed, queuing locally", "barcode", barcode, "error", err)
		return c.captureScanOffline(ctx, barcode, method, location)
	}
	return record, nil
}

func (c *Capturer) captureScanOffline(ctx context.Context, barcode string, method ScanMethod, location *Location) (*ScanRecord, error) {
	record := &ScanRecord{
		ID:      uuid.New().String(),
		Barcode: barcode,
		ScannedProduct: ScannedProduct{
			Name:     barcode,
			Brand:    "Inconnu",
			Category: "Non classé",
			Barcode:  barcode,
		},
		Match:      nil,
		Status:     ScanStatusNoMatch,
		ScannedAt:  time.Now().UTC(),
		ScanMethod: method,
		Location:   location,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize scan record: %w", err)
	}
	if _, err := c.store.EnqueueScan(ctx, &QueuedScan{
		ID:       record.ID,
		Barcode:  barcode,
		Method:   method,
		Payload:  payload,
		Location: location,
	}); err != nil {
		return nil, err
	}
	if err := c.state.RefreshPending(ctx, c.store); err != nil {
		return nil, err
	}
	c.logger.Debug("scan queued for later delivery", "id", record.ID, "barcode", barcode)
	return record, nil
}

// CaptureAction records a deferred mutation (price workflow submission,
// voice-note CRM update, ...). It returns the client-generated identifier of
// the action, which the remote endpoint uses for idempotent replay.
func (c *Capturer) CaptureAction(ctx context.Context, actionType ActionType, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal action payload: %w", err)
	}

	if c.monitor.Offline() {
		return c.captureActionOffline(ctx, actionType, data)
	}

	id := uuid.New().String()
	err = c.api.SubmitAction(ctx, QueuedAction{ID: id, Type: actionType, Payload: data})
	if err != nil {
		if !IsNetworkError(err) {
			return "", err
		}
		c.logger.Warn("action submission failed, queuing locally", "type", actionType, "error", err)
		return c.captureActionOffline(ctx, actionType, data)
	}
	return id, nil
}

func (c *Capturer) captureActionOffline(ctx context.Context, actionType ActionType, payload json.RawMessage) (string, error) {
	id, err := c.store.EnqueueAction(ctx, actionType, payload)
	if err != nil {
		return "", err
	}
	if err := c.state.RefreshPending(ctx, c.store); err != nil {
		return "", err
	}
	c.logger.Debug("action queued for later delivery", "id", id, "type", actionType)
	return id, nil
}

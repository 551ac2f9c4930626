// Package simulator drives the offline sync engine through realistic field
// scenarios against a running API server, then verifies the server-side
// outcome. It is the integration harness for the offline-first flow.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/YounesEssl/molyscan-sync/internal/auth"
	"github.com/YounesEssl/molyscan-sync/internal/config"
	"github.com/YounesEssl/molyscan-sync/offsync"
)

// Simulator owns one simulated device and its engine instance.
type Simulator struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *offsync.Engine
	token  string
}

// New builds a simulator for the given configuration. workDir receives the
// device's SQLite queue database.
func New(ctx context.Context, cfg *config.Config, workDir string) (*Simulator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jwtAuth := auth.NewJWTAuth(cfg.JWTSecret)
	token, err := jwtAuth.GenerateToken(cfg.UserID, cfg.DeviceID, cfg.TokenExpiry.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to generate device token: %w", err)
	}

	api := offsync.NewAPIClient(cfg.ServerURL, func(context.Context) (string, error) {
		return token, nil
	})
	api.HTTP.Timeout = cfg.HTTPTimeout.Std()

	engine, err := offsync.NewEngine(ctx, offsync.Options{
		DBPath:      filepath.Join(workDir, "molyscan-sim.db"),
		API:         api,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &Simulator{cfg: cfg, logger: logger, engine: engine, token: token}, nil
}

// Close tears down the engine.
func (s *Simulator) Close() error {
	return s.engine.Close()
}

// RunOfflineOnline executes the offline/online scenario:
//
//  1. Go offline (manual toggle) and capture scans plus a price action.
//  2. Verify everything queued locally.
//  3. Come back online and wait for the automatic sync run.
//  4. Verify the queue drained and the server holds every record.
func (s *Simulator) RunOfflineOnline(ctx context.Context) error {
	s.logger.Info("scenario start", "name", "offline-online", "server", s.cfg.ServerURL)

	s.engine.SetManualOffline(true)

	barcodes := []string{"3254560000117", "3254560000124", "0000000000000"}
	for _, barcode := range barcodes {
		record, err := s.engine.Capturer.CaptureScan(ctx, barcode, offsync.ScanMethodBarcode, &offsync.Location{
			Lat: 48.8566, Lng: 2.3522, Label: "Paris, dépôt client",
		})
		if err != nil {
			return fmt.Errorf("offline capture failed: %w", err)
		}
		if record.Status != offsync.ScanStatusNoMatch {
			return fmt.Errorf("offline scan %s: expected status no_match, got %s", barcode, record.Status)
		}
	}

	if _, err := s.engine.Capturer.CaptureAction(ctx, offsync.ActionPriceWorkflow, map[string]any{
		"barcode":  barcodes[0],
		"quantity": 24,
		"comment":  "Demande de tarif après visite",
	}); err != nil {
		return fmt.Errorf("offline action capture failed: %w", err)
	}

	snap := s.engine.Snapshot()
	if snap.PendingCount != len(barcodes)+1 {
		return fmt.Errorf("expected %d pending items, got %d", len(barcodes)+1, snap.PendingCount)
	}
	s.logger.Info("captured while offline", "pending", snap.PendingCount)

	// Back online: the offline->online edge triggers the orchestrator.
	s.engine.SetManualOffline(false)

	if err := s.waitForDrain(ctx, 30*time.Second); err != nil {
		return err
	}

	count, err := s.serverScanCount(ctx)
	if err != nil {
		return err
	}
	if count < len(barcodes) {
		return fmt.Errorf("server holds %d scans, expected at least %d", count, len(barcodes))
	}

	snap = s.engine.Snapshot()
	s.logger.Info("scenario complete",
		"pending", snap.PendingCount, "lastSyncAt", snap.LastSyncAt, "serverScans", count)
	return nil
}

// waitForDrain polls the engine snapshot until the queue is empty and the
// orchestrator is idle.
func (s *Simulator) waitForDrain(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		snap := s.engine.Snapshot()
		if snap.Sync.Syncing {
			s.logger.Debug("sync in progress", "current", snap.Sync.Current, "total", snap.Sync.Total)
		}
		if !snap.Sync.Syncing && snap.PendingCount == 0 && snap.LastSyncAt != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	snap := s.engine.Snapshot()
	return fmt.Errorf("queue did not drain: %d items still pending", snap.PendingCount)
}

func (s *Simulator) serverScanCount(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.ServerURL+"/v1/scans", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query server scans: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode scan list: %w", err)
	}
	return len(payload.Data), nil
}

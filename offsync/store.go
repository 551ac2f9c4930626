// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

// Package offsync implements the offline-first synchronization engine of the
// molyscan field-sales app: a durable SQLite-backed queue for scans and
// deferred actions, a connectivity monitor, process-wide offline state and a
// sync orchestrator that drains the queues against the remote API.
package offsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultMaxAttempts is the delivery attempt budget before a queued item is
// quarantined and excluded from further sync runs.
const DefaultMaxAttempts = 5

// timeLayout is the stored timestamp format. Fixed-width UTC so that
// lexicographic ordering on created_at matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Store is the durable local store for the two offline queues. Writes are
// committed to disk before the call returns; a crash between enqueue and
// delivery leaves the item undelivered for the next sync run.
type Store struct {
	db          *sql.DB
	maxAttempts int
}

// OpenStore creates or opens the queue database at path.
// The database is configured with WAL mode, a busy timeout and a single
// writer connection, matching SQLite mobile practice.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent capture and sync.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore initializes the queue schema on an existing database handle.
// Useful for tests running against ":memory:" databases.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS offline_scans (
			id          TEXT PRIMARY KEY NOT NULL,
			barcode     TEXT NOT NULL,
			scan_method TEXT NOT NULL DEFAULT 'barcode',
			scan_data   TEXT NOT NULL,
			location    TEXT,
			created_at  TEXT NOT NULL,
			delivered   INTEGER NOT NULL DEFAULT 0,
			attempts    INTEGER NOT NULL DEFAULT 0,
			quarantined INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS offline_actions (
			id          TEXT PRIMARY KEY NOT NULL,
			type        TEXT NOT NULL,
			payload     TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			delivered   INTEGER NOT NULL DEFAULT 0,
			attempts    INTEGER NOT NULL DEFAULT 0,
			quarantined INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offline_scans_pending
			ON offline_scans (delivered, quarantined, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_offline_actions_pending
			ON offline_actions (delivered, quarantined, created_at)`,
	}
	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return nil, fmt.Errorf("failed to create queue table: %w", err)
		}
	}

	return &Store{db: db, maxAttempts: DefaultMaxAttempts}, nil
}

// SetMaxAttempts overrides the per-item delivery attempt budget.
func (s *Store) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nowUTC() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseStoredTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// Fall back to RFC3339 for rows written by older app builds.
		t, _ = time.Parse(time.RFC3339Nano, v)
	}
	return t
}

// EnqueueScan persists a captured scan. If scan.ID is empty a client-side
// identifier is generated; the identifier is returned in either case and is
// never reused, which is what makes remote retries safe.
func (s *Store) EnqueueScan(ctx context.Context, scan *QueuedScan) (string, error) {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.Method == "" {
		scan.Method = ScanMethodBarcode
	}
	var loc sql.NullString
	if scan.Location != nil {
		data, err := json.Marshal(scan.Location)
		if err != nil {
			return "", fmt.Errorf("failed to marshal scan location: %w", err)
		}
		loc = sql.NullString{String: string(data), Valid: true}
	}
	createdAt := nowUTC()
	if !scan.CreatedAt.IsZero() {
		createdAt = scan.CreatedAt.UTC().Format(timeLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO offline_scans (id, barcode, scan_method, scan_data, location, created_at, delivered)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, scan.ID, scan.Barcode, string(scan.Method), string(scan.Payload), loc, createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue scan: %w", err)
	}
	return scan.ID, nil
}

// EnqueueAction persists a deferred mutation with the given discriminator.
func (s *Store) EnqueueAction(ctx context.Context, actionType ActionType, payload json.RawMessage) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO offline_actions (id, type, payload, created_at, delivered)
		VALUES (?, ?, ?, ?, 0)
	`, id, string(actionType), string(payload), nowUTC())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue action: %w", err)
	}
	return id, nil
}

// ListUndelivered returns the undelivered, non-quarantined items of both
// queues, each ordered by creation time ascending. This is the snapshot a
// sync run replays.
func (s *Store) ListUndelivered(ctx context.Context) ([]QueuedScan, []QueuedAction, error) {
	scans, err := s.listScans(ctx, `WHERE delivered = 0 AND quarantined = 0`)
	if err != nil {
		return nil, nil, err
	}
	actions, err := s.listActions(ctx, `WHERE delivered = 0 AND quarantined = 0`)
	if err != nil {
		return nil, nil, err
	}
	return scans, actions, nil
}

// ListQuarantined returns items that exhausted their delivery attempt budget.
func (s *Store) ListQuarantined(ctx context.Context) ([]QueuedScan, []QueuedAction, error) {
	scans, err := s.listScans(ctx, `WHERE quarantined = 1`)
	if err != nil {
		return nil, nil, err
	}
	actions, err := s.listActions(ctx, `WHERE quarantined = 1`)
	if err != nil {
		return nil, nil, err
	}
	return scans, actions, nil
}

func (s *Store) listScans(ctx context.Context, where string) ([]QueuedScan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, barcode, scan_method, scan_data, location, created_at, delivered, attempts
		FROM offline_scans `+where+` ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var scans []QueuedScan
	for rows.Next() {
		var scan QueuedScan
		var method, payload, createdAt string
		var loc sql.NullString
		var delivered int
		if err := rows.Scan(&scan.ID, &scan.Barcode, &method, &payload, &loc, &createdAt, &delivered, &scan.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan queued scan row: %w", err)
		}
		scan.Method = ScanMethod(method)
		scan.Payload = json.RawMessage(payload)
		scan.CreatedAt = parseStoredTime(createdAt)
		scan.Delivered = delivered != 0
		if loc.Valid && loc.String != "" {
			var location Location
			if err := json.Unmarshal([]byte(loc.String), &location); err == nil {
				scan.Location = &location
			}
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}
	return scans, nil
}

func (s *Store) listActions(ctx context.Context, where string) ([]QueuedAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, created_at, delivered, attempts
		FROM offline_actions `+where+` ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []QueuedAction
	for rows.Next() {
		var action QueuedAction
		var typ, payload, createdAt string
		var delivered int
		if err := rows.Scan(&action.ID, &typ, &payload, &createdAt, &delivered, &action.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan queued action row: %w", err)
		}
		action.Type = ActionType(typ)
		action.Payload = json.RawMessage(payload)
		action.CreatedAt = parseStoredTime(createdAt)
		action.Delivered = delivered != 0
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}
	return actions, nil
}

// MarkScanDelivered flips the delivered flag for a scan after a successful
// remote submission.
func (s *Store) MarkScanDelivered(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE offline_scans SET delivered = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark scan delivered: %w", err)
	}
	return nil
}

// MarkActionDelivered flips the delivered flag for an action.
func (s *Store) MarkActionDelivered(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE offline_actions SET delivered = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark action delivered: %w", err)
	}
	return nil
}

// RecordScanFailure bumps the attempt counter after a failed submission and
// quarantines the scan once the attempt budget is exhausted. Returns whether
// the item is now quarantined.
func (s *Store) RecordScanFailure(ctx context.Context, id string) (bool, error) {
	return s.recordFailure(ctx, "offline_scans", id)
}

// RecordActionFailure is RecordScanFailure for the action queue.
func (s *Store) RecordActionFailure(ctx context.Context, id string) (bool, error) {
	return s.recordFailure(ctx, "offline_actions", id)
}

func (s *Store) recordFailure(ctx context.Context, table, id string) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE `+table+`
		SET attempts = attempts + 1,
		    quarantined = CASE WHEN attempts + 1 >= ? THEN 1 ELSE 0 END
		WHERE id = ?
	`, s.maxAttempts, id)
	if err != nil {
		return false, fmt.Errorf("failed to record delivery failure: %w", err)
	}
	var quarantined int
	if err := s.db.QueryRowContext(ctx, `SELECT quarantined FROM `+table+` WHERE id = ?`, id).Scan(&quarantined); err != nil {
		return false, fmt.Errorf("failed to read quarantine flag: %w", err)
	}
	return quarantined != 0, nil
}

// CountUndelivered returns the combined number of undelivered,
// non-quarantined items across both queues. This is the only cached queue
// statistic and is always recomputed from the store, never adjusted
// speculatively.
func (s *Store) CountUndelivered(ctx context.Context) (int, error) {
	var scans, actions int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_scans WHERE delivered = 0 AND quarantined = 0`).Scan(&scans); err != nil {
		return 0, fmt.Errorf("failed to count pending scans: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_actions WHERE delivered = 0 AND quarantined = 0`).Scan(&actions); err != nil {
		return 0, fmt.Errorf("failed to count pending actions: %w", err)
	}
	return scans + actions, nil
}

// PurgeDelivered removes delivered rows from both queues. Maintenance only;
// never called on the sync critical path.
func (s *Store) PurgeDelivered(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offline_scans WHERE delivered = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge delivered scans: %w", err)
	}
	purged, _ := res.RowsAffected()
	res, err = s.db.ExecContext(ctx, `DELETE FROM offline_actions WHERE delivered = 1`)
	if err != nil {
		return purged, fmt.Errorf("failed to purge delivered actions: %w", err)
	}
	n, _ := res.RowsAffected()
	return purged + n, nil
}

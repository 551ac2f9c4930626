package devserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YounesEssl/molyscan-sync/offsync"
)

// PriceWorkflow is a price request workflow created through the API.
type PriceWorkflow struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"clientId"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// VoiceNote is the CRM voice note entity patched through the API.
type VoiceNote struct {
	ID        string                     `json:"id"`
	Fields    map[string]json.RawMessage `json:"fields"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

// memStore is the in-memory backing state of the dev server. All mutating
// operations deduplicate on the client-supplied identifier so replayed
// submissions are upserts, as the sync engine requires.
type memStore struct {
	mu          sync.Mutex
	scans       map[string]*offsync.ScanRecord // keyed by client scan ID
	scanOrder   []string
	workflows   map[string]*PriceWorkflow // keyed by idempotency key
	voiceNotes  map[string]*VoiceNote     // keyed by note ID
	appliedKeys map[string]bool           // idempotency keys already applied to voice notes
	catalog     map[string]offsync.ProductMatch
}

func newMemStore() *memStore {
	return &memStore{
		scans:       make(map[string]*offsync.ScanRecord),
		workflows:   make(map[string]*PriceWorkflow),
		voiceNotes:  make(map[string]*VoiceNote),
		appliedKeys: make(map[string]bool),
		catalog:     seedCatalog(),
	}
}

// seedCatalog provides a small product-equivalence catalog so matched scans
// behave realistically in simulations.
func seedCatalog() map[string]offsync.ProductMatch {
	return map[string]offsync.ProductMatch{
		"3254560000117": {
			ID: "moly-001", Name: "Dégrippant MS 100", Reference: "MS-100",
			Category: "Lubrifiants", Confidence: 96, PricingTier: "standard",
		},
		"3254560000124": {
			ID: "moly-002", Name: "Graisse haute température GR 3000", Reference: "GR-3000",
			Category: "Graisses", Confidence: 91, PricingTier: "premium",
		},
		"3254560000131": {
			ID: "moly-003", Name: "Nettoyant contact NC 60", Reference: "NC-60",
			Category: "Nettoyants", Confidence: 88, PricingTier: "standard",
		},
	}
}

// upsertScan records a scan idempotently: resubmitting the same client ID
// returns the existing record and reports created=false.
func (s *memStore) upsertScan(userID string, sub offsync.ScanSubmission) (*offsync.ScanRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.scans[sub.ID]; ok {
		return existing, false
	}

	record := &offsync.ScanRecord{
		ID:      sub.ID,
		Barcode: sub.Barcode,
		ScannedProduct: offsync.ScannedProduct{
			Name:     sub.Barcode,
			Brand:    "Inconnu",
			Category: "Non classé",
			Barcode:  sub.Barcode,
		},
		Status:     offsync.ScanStatusNoMatch,
		ScannedAt:  time.Now().UTC(),
		ScanMethod: sub.ScanMethod,
		Location:   sub.Location,
		UserID:     userID,
	}
	if match, ok := s.catalog[sub.Barcode]; ok {
		m := match
		record.Match = &m
		record.Status = offsync.ScanStatusMatched
		record.ScannedProduct.Name = match.Name
		record.ScannedProduct.Category = match.Category
	}
	// An offline capture carries the snapshot the device rendered; keep its
	// original scan timestamp if it parses.
	if len(sub.ScanData) > 0 {
		var snapshot offsync.ScanRecord
		if err := json.Unmarshal(sub.ScanData, &snapshot); err == nil && !snapshot.ScannedAt.IsZero() {
			record.ScannedAt = snapshot.ScannedAt
			if snapshot.ScanMethod != "" {
				record.ScanMethod = snapshot.ScanMethod
			}
		}
	}

	s.scans[sub.ID] = record
	s.scanOrder = append(s.scanOrder, sub.ID)
	return record, true
}

func (s *memStore) listScans() []*offsync.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*offsync.ScanRecord, 0, len(s.scanOrder))
	for _, id := range s.scanOrder {
		out = append(out, s.scans[id])
	}
	return out
}

// createWorkflow creates a price workflow, deduplicating on the idempotency
// key.
func (s *memStore) createWorkflow(userID, idempotencyKey string, payload json.RawMessage) (*PriceWorkflow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.workflows[idempotencyKey]; ok {
		return existing, false
	}
	wf := &PriceWorkflow{
		ID:        uuid.New().String(),
		ClientID:  idempotencyKey,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	s.workflows[idempotencyKey] = wf
	return wf, true
}

func (s *memStore) listWorkflows() []*PriceWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*PriceWorkflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	return out
}

// patchVoiceNote applies a field patch to a voice note. A replay with an
// already-applied idempotency key is a no-op returning the current note.
func (s *memStore) patchVoiceNote(noteID, idempotencyKey string, fields map[string]json.RawMessage) (*VoiceNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.voiceNotes[noteID]
	if !ok {
		note = &VoiceNote{ID: noteID, Fields: make(map[string]json.RawMessage)}
		s.voiceNotes[noteID] = note
	}
	if idempotencyKey != "" && s.appliedKeys[idempotencyKey] {
		return note, false
	}
	for k, v := range fields {
		if k == "noteId" {
			continue
		}
		note.Fields[k] = v
	}
	note.UpdatedAt = time.Now().UTC()
	if idempotencyKey != "" {
		s.appliedKeys[idempotencyKey] = true
	}
	return note, true
}

func (s *memStore) getVoiceNote(noteID string) (*VoiceNote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.voiceNotes[noteID]
	return note, ok
}

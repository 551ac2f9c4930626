// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"encoding/json"
	"time"
)

// ScanMethod identifies how a product scan was produced.
type ScanMethod string

const (
	ScanMethodBarcode ScanMethod = "barcode"
	ScanMethodLabel   ScanMethod = "label"
	ScanMethodVoice   ScanMethod = "voice"
)

// ScanStatus is the confidence tier of a scan's product match.
type ScanStatus string

const (
	ScanStatusMatched ScanStatus = "matched"
	ScanStatusPartial ScanStatus = "partial"
	ScanStatusNoMatch ScanStatus = "no_match"
)

// Location is an optional geolocation attached to a scan.
type Location struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label,omitempty"`
}

// ScannedProduct is what the scanner identified on the shelf.
type ScannedProduct struct {
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Barcode     string `json:"barcode"`
}

// ProductMatch is the catalog equivalence the server resolved for a scan.
type ProductMatch struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Reference   string  `json:"reference"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	PricingTier string  `json:"pricingTier,omitempty"`
}

// ScanRecord is the full result of a product scan as rendered by the app.
// While offline the record is synthesized locally with no match information
// and ScanStatusNoMatch until reconciled with the server.
type ScanRecord struct {
	ID             string         `json:"id"`
	Barcode        string         `json:"barcode"`
	ScannedProduct ScannedProduct `json:"scannedProduct"`
	Match          *ProductMatch  `json:"molydalMatch"`
	Status         ScanStatus     `json:"status"`
	ScannedAt      time.Time      `json:"scannedAt"`
	ScanMethod     ScanMethod     `json:"scanMethod"`
	Location       *Location      `json:"location"`
	UserID         string         `json:"userId,omitempty"`
}

// ActionType discriminates deferred mutations in the action queue.
type ActionType string

const (
	// ActionPriceWorkflow submits a price request workflow.
	ActionPriceWorkflow ActionType = "price_workflow"
	// ActionVoiceNoteUpdate patches CRM fields extracted from a voice note.
	ActionVoiceNoteUpdate ActionType = "voice_note_update"
)

// QueuedScan is a captured product scan recorded while offline.
// Payload holds the serialized ScanRecord snapshot the UI already computed.
type QueuedScan struct {
	ID        string
	Barcode   string
	Method    ScanMethod
	Payload   json.RawMessage
	Location  *Location
	CreatedAt time.Time
	Delivered bool
	Attempts  int
}

// QueuedAction is a generic deferred mutation awaiting delivery.
type QueuedAction struct {
	ID        string
	Type      ActionType
	Payload   json.RawMessage
	CreatedAt time.Time
	Delivered bool
	Attempts  int
}

// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ScanSubmission is the wire form of a scan sent to the remote API. The
// client-supplied ID makes the endpoint an idempotent upsert: resubmitting
// after a lost response cannot create a duplicate remote record.
type ScanSubmission struct {
	ID         string          `json:"id"`
	Barcode    string          `json:"barcode"`
	ScanMethod ScanMethod      `json:"scanMethod"`
	Location   *Location       `json:"location,omitempty"`
	ScanData   json.RawMessage `json:"scanData,omitempty"`
}

// RemoteAPI is the narrow contract the engine consumes from the (out of
// scope) REST backend: one call per queued item. Both calls must be safe to
// repeat with the same client-supplied identifier.
type RemoteAPI interface {
	SubmitScan(ctx context.Context, sub ScanSubmission) (*ScanRecord, error)
	SubmitAction(ctx context.Context, action QueuedAction) error
}

// NetworkError wraps transport-level failures (connection refused, DNS,
// timeout). The capture path degrades to an offline enqueue on these, while
// application-level rejections from a reachable server propagate as plain
// errors.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is (or wraps) a transport failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// APIClient is the HTTP implementation of RemoteAPI.
type APIClient struct {
	BaseURL string
	Token   func(context.Context) (string, error) // returns JWT
	HTTP    *http.Client
}

// NewAPIClient creates a client for the remote API at baseURL. tok supplies
// the bearer token per request.
func NewAPIClient(baseURL string, tok func(context.Context) (string, error)) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		Token:   tok,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitScan posts a scan capture and returns the reconciled record.
func (c *APIClient) SubmitScan(ctx context.Context, sub ScanSubmission) (*ScanRecord, error) {
	var record ScanRecord
	if err := c.doJSON(ctx, http.MethodPost, "/v1/scans", sub.ID, sub, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// SubmitAction routes a queued action to its endpoint by discriminator.
func (c *APIClient) SubmitAction(ctx context.Context, action QueuedAction) error {
	switch action.Type {
	case ActionPriceWorkflow:
		return c.doJSON(ctx, http.MethodPost, "/v1/workflows/price", action.ID, action.Payload, nil)
	case ActionVoiceNoteUpdate:
		noteID, err := voiceNoteID(action.Payload)
		if err != nil {
			return err
		}
		return c.doJSON(ctx, http.MethodPatch, "/v1/voice-notes/"+noteID, action.ID, action.Payload, nil)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func voiceNoteID(payload json.RawMessage) (string, error) {
	var body struct {
		NoteID string `json:"noteId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("failed to parse voice note payload: %w", err)
	}
	if body.NoteID == "" {
		return "", fmt.Errorf("voice note payload missing noteId")
	}
	return body.NoteID, nil
}

// doJSON sends one authenticated JSON request. idempotencyKey is the
// client-generated item identifier; the server deduplicates on it.
func (c *APIClient) doJSON(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get JWT token: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(excerpt))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Package services – HTTP receiver adapter.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// HTTPReceiver delivers relay payloads to a downstream HTTP endpoint as
// JSON. It implements the Receiver port; the shipped server points it at the
// configured downstream URL (the local mock by default).
type HTTPReceiver struct {
	// URL is the downstream endpoint, e.g. "http://localhost:8080/mock-relay/receive".
	URL string
	// Client is the HTTP client used for delivery; a 10s-timeout client is
	// used when nil.
	Client *http.Client
}

// relayPayload is the wire shape posted to the downstream receiver.
type relayPayload struct {
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Deliver posts (message, meta) downstream and returns the response status
// code. Any status is returned to the dispatch loop for classification; only
// transport-level failures produce an error.
func (r *HTTPReceiver) Deliver(ctx context.Context, message string, meta map[string]any) (int, error) {
	body, err := json.Marshal(relayPayload{Message: message, Meta: meta})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused across attempts.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode, nil
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPReceiver_DeliverPostsJSON(t *testing.T) {
	var got relayPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	recv := &HTTPReceiver{URL: srv.URL}
	status, err := recv.Deliver(context.Background(), "hello", map[string]any{"channel": "sms"})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if status != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", status)
	}
	if got.Message != "hello" || got.Meta["channel"] != "sms" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestHTTPReceiver_ReturnsDownstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	recv := &HTTPReceiver{URL: srv.URL}
	status, err := recv.Deliver(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
}

func TestHTTPReceiver_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // deliberately unreachable

	recv := &HTTPReceiver{URL: srv.URL}
	if _, err := recv.Deliver(context.Background(), "hello", nil); err == nil {
		t.Fatalf("expected transport error for closed server")
	}
}

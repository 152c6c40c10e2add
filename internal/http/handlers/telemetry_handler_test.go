package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-sensorhub-backend/internal/domain"
	"github.com/tbourn/go-sensorhub-backend/internal/services"
)

// ---------- tiny stubs for the service contracts ----------

type stubTelemetrySvc struct {
	out services.IngestOutcome
	err error
	got *services.TelemetryInput
}

func (s *stubTelemetrySvc) Ingest(_ context.Context, in services.TelemetryInput) (services.IngestOutcome, error) {
	s.got = &in
	return s.out, s.err
}

type stubRelaySvc struct {
	out services.PublishOutcome
	err error
}

func (s *stubRelaySvc) Publish(context.Context, string, services.PublishInput) (services.PublishOutcome, error) {
	return s.out, s.err
}

type stubDeviceSvc struct {
	snap *services.DeviceSnapshot
	err  error
}

func (s *stubDeviceSvc) Latest(context.Context, string) (*services.DeviceSnapshot, error) {
	return s.snap, s.err
}

func (s *stubDeviceSvc) ListPage(context.Context, int, int) ([]services.DeviceSnapshot, int64, error) {
	return nil, 0, s.err
}

type stubBillingSvc struct {
	sub *domain.Subscription
	err error
}

func (s *stubBillingSvc) Subscribe(context.Context, string, string) (*domain.Subscription, error) {
	return s.sub, s.err
}

func newHandlerRouter(tel TelemetryService, relay RelayService, dev DeviceService, billing BillingService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(tel, relay, dev, billing)
	r.POST("/telemetry/ping", h.PingTelemetry)
	r.POST("/relay/publish", h.PublishRelay)
	r.GET("/device/latest", h.LatestDevice)
	r.POST("/billing/subscribe", h.Subscribe)
	return r
}

func postJSON(r *gin.Engine, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validPing = `{
	"deviceId": "123",
	"metric": "temperature",
	"value": 0,
	"status": "ok",
	"ts": "2026-03-01T12:00:00Z",
	"eventId": "evt-1"
}`

func TestPingTelemetry_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing fields", services.ErrMissingFields, http.StatusBadRequest},
		{"unknown device", services.ErrDeviceNotFound, http.StatusNotFound},
		{"no subscription", services.ErrNoActiveSubscription, http.StatusForbidden},
		{"rate limited", services.ErrRateLimited, http.StatusTooManyRequests},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newHandlerRouter(&stubTelemetrySvc{err: tc.err}, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{})
			w := postJSON(r, "/telemetry/ping", validPing, nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body)
			}
		})
	}
}

func TestPingTelemetry_ZeroValueBinds(t *testing.T) {
	svc := &stubTelemetrySvc{}
	r := newHandlerRouter(svc, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{})

	w := postJSON(r, "/telemetry/ping", validPing, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", w.Code, w.Body)
	}
	if svc.got == nil || svc.got.Value != 0 || svc.got.EventID != "evt-1" {
		t.Fatalf("service input = %+v", svc.got)
	}
	if !svc.got.TS.Equal(mustTime(t, "2026-03-01T12:00:00Z")) {
		t.Fatalf("ts = %v", svc.got.TS)
	}
}

func TestPingTelemetry_MissingValueRejected(t *testing.T) {
	svc := &stubTelemetrySvc{}
	r := newHandlerRouter(svc, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{})

	body := `{"deviceId":"123","metric":"temperature","status":"ok","ts":"2026-03-01T12:00:00Z","eventId":"evt-1"}`
	w := postJSON(r, "/telemetry/ping", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if svc.got != nil {
		t.Fatalf("service reached despite missing value")
	}
}

func TestPingTelemetry_Replay200(t *testing.T) {
	r := newHandlerRouter(&stubTelemetrySvc{out: services.IngestOutcome{Replayed: true}}, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{})

	w := postJSON(r, "/telemetry/ping", validPing, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Message != "Already processed" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestPublishRelay_StatusMapping(t *testing.T) {
	auth := map[string]string{"x-api-key": "test-api-key"}
	body := `{"clientId":"client-1","message":"hi","idempotencyKey":"k1"}`

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid key", services.ErrInvalidAPIKey, http.StatusForbidden},
		{"missing fields", services.ErrMissingFields, http.StatusBadRequest},
		{"rate limited", services.ErrRateLimited, http.StatusTooManyRequests},
		{"exhausted", services.ErrRelayExhausted, http.StatusBadGateway},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{err: tc.err}, &stubDeviceSvc{}, &stubBillingSvc{})
			w := postJSON(r, "/relay/publish", body, auth)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body)
			}
		})
	}

	// No credential never reaches the service.
	r := newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{})
	w := postJSON(r, "/relay/publish", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key status = %d, want 401", w.Code)
	}

	// Success and replay shapes.
	r = newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{out: services.PublishOutcome{Status: domain.RelayStatusSuccess}}, &stubDeviceSvc{}, &stubBillingSvc{})
	w = postJSON(r, "/relay/publish", body, auth)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "Relay successful") {
		t.Fatalf("success = %d (%s)", w.Code, w.Body)
	}

	r = newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{out: services.PublishOutcome{Status: domain.RelayStatusSuccess, Replayed: true}}, &stubDeviceSvc{}, &stubBillingSvc{})
	w = postJSON(r, "/relay/publish", body, auth)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Already processed") {
		t.Fatalf("replay = %d (%s)", w.Code, w.Body)
	}
}

func TestSubscribe_StatusMapping(t *testing.T) {
	body := `{"deviceId":"123","planId":"yearly"}`

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing fields", services.ErrMissingFields, http.StatusBadRequest},
		{"unknown device", services.ErrDeviceNotFound, http.StatusNotFound},
		{"payment failed", services.ErrPaymentFailed, http.StatusPaymentRequired},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{err: tc.err})
			w := postJSON(r, "/billing/subscribe", body, nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body)
			}
		})
	}

	r := newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{}, &stubDeviceSvc{}, &stubBillingSvc{sub: &domain.Subscription{ID: "sub-1", Status: "active"}})
	w := postJSON(r, "/billing/subscribe", body, nil)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "sub-1") {
		t.Fatalf("subscribe = %d (%s)", w.Code, w.Body)
	}
}

func TestLatestDevice_SingleDevice(t *testing.T) {
	snap := &services.DeviceSnapshot{ID: "123", LastValue: 21.5, SubscriptionActive: true}
	r := newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{}, &stubDeviceSvc{snap: snap}, &stubBillingSvc{})

	req := httptest.NewRequest(http.MethodGet, "/device/latest?deviceId=123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body)
	}
	var got services.DeviceSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.ID != "123" || got.LastValue != 21.5 || !got.SubscriptionActive {
		t.Fatalf("snapshot = %+v", got)
	}

	// Unknown device maps to 404.
	r = newHandlerRouter(&stubTelemetrySvc{}, &stubRelaySvc{}, &stubDeviceSvc{err: services.ErrDeviceNotFound}, &stubBillingSvc{})
	req = httptest.NewRequest(http.MethodGet, "/device/latest?deviceId=ghost", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

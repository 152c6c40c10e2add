package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByAPIKeyOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// With x-api-key present
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("x-api-key", "test-api-key")

	key := KeyByAPIKeyOrIP()(c)
	if key != "key:test-api-key" {
		t.Fatalf("key = %q; want key:test-api-key", key)
	}

	// Without credential falls back to IP
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	key2 := KeyByAPIKeyOrIP()(c)
	if !strings.HasPrefix(key2, "ip:") {
		t.Fatalf("key = %q; want ip:<addr>", key2)
	}
}

func TestNewRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByAPIKeyOrIP()) // burst<=0 coerced to 1
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
}

func TestRateLimiter_GetVisitor_ReusesAndEvicts(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByAPIKeyOrIP())

	l1 := rl.getVisitor("a")
	l2 := rl.getVisitor("a")
	if l1 != l2 {
		t.Fatalf("expected same limiter instance for same key")
	}

	// Force eviction: age the entry past TTL, then trip the GC threshold.
	rl.mu.Lock()
	rl.visitors["a"].lastSeen = time.Now().Add(-rl.ttl - time.Minute)
	rl.cleanupN = 4999
	rl.mu.Unlock()

	l3 := rl.getVisitor("a")
	if l3 == l1 {
		t.Fatalf("expected fresh limiter after eviction")
	}
}

func TestRateLimiter_Handler_AllowsThenDenies(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 0 rps, burst 1: first request passes, second is denied.
	rl := NewRateLimiter(0, 1, func(*gin.Context) string { return "fixed" })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-rl")
		c.Next()
	})
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d; want 200", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("missing Retry-After header")
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":"rate_limited"`) || !strings.Contains(body, "rid-rl") {
		t.Fatalf("unexpected 429 body: %s", body)
	}
}

func TestRateLimiter_Handler_IndependentKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(0, 1, KeyByAPIKeyOrIP())
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Exhaust the bucket for one credential.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("x-api-key", "key-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for exhausted credential, got %d", w.Code)
	}

	// Another credential still has its own bucket.
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req2.Header.Set("x-api-key", "key-b")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req2)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for fresh credential, got %d", w.Code)
	}
}

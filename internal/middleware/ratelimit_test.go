package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig() RateLimitConfig {
	return RateLimitConfig{
		RatePerSecond:   5,
		Burst:           5,
		CleanupInterval: time.Minute,
		MaxAge:          time.Minute,
	}
}

func TestRateLimiter_BasicLimit(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		if !rl.Allow("test-key") {
			t.Errorf("request %d should have been allowed", i)
		}
	}
	if rl.Allow("test-key") {
		t.Error("request should have been rate limited")
	}
}

func TestRateLimiter_DifferentKeys(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow("key1")
	}
	if rl.Allow("key1") {
		t.Error("key1 should be rate limited")
	}
	if !rl.Allow("key2") {
		t.Error("key2 should not be rate limited")
	}
}

func TestRateLimitMiddleware_ByIP(t *testing.T) {
	rl := NewRateLimiter(testConfig())
	defer rl.Stop()

	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	allowed, limited := 0, 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/test", nil)
		req.RemoteAddr = "10.0.0.1:4444"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		switch w.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("unexpected status %d", w.Code)
		}
	}
	if allowed != 5 || limited != 5 {
		t.Errorf("allowed=%d limited=%d, want 5/5", allowed, limited)
	}

	// A different IP gets its own budget.
	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "10.0.0.2:4444"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("second IP: status %d, want 200", w.Code)
	}
}

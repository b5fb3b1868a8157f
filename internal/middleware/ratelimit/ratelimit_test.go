package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterAllow(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 3, CleanupInterval: time.Minute})
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("fourth request in the window should be rejected")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("different client should have its own window")
	}
}

func TestLimiterMiddleware(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	handler := l.Middleware(
		func(r *http.Request) string { return "test-client" },
		nil,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/expenses", nil))
	if first.Code != http.StatusOK {
		t.Errorf("first request: status %d; want 200", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/expenses", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status %d; want 429", second.Code)
	}
	if second.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q; want 60", second.Header().Get("Retry-After"))
	}
}

func TestLimiterCleanup(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 10, CleanupInterval: time.Minute})
	defer l.Stop()

	l.Allow("a")
	l.Allow("b")
	if l.ActiveClients() != 2 {
		t.Fatalf("ActiveClients() = %d; want 2", l.ActiveClients())
	}

	l.mu.Lock()
	l.clients["a"].lastRequest = time.Now().Add(-time.Hour)
	l.mu.Unlock()

	l.cleanupStaleEntries()
	if l.ActiveClients() != 1 {
		t.Errorf("ActiveClients() after cleanup = %d; want 1", l.ActiveClients())
	}
}

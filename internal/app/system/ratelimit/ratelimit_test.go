package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLimiter_BurstThenReject(t *testing.T) {
	l := New(0.001, 2)
	defer l.Stop()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("u1"); !ok {
			t.Fatalf("request %d rejected within burst", i+1)
		}
	}
	ok, wait := l.Allow("u1")
	if ok {
		t.Fatal("expected third request to be rejected")
	}
	if wait <= 0 {
		t.Errorf("wait = %v, want > 0", wait)
	}

	// Keys are independent.
	if ok, _ := l.Allow("u2"); !ok {
		t.Error("other key should not be limited")
	}

	l.Reset("u1")
	if ok, _ := l.Allow("u1"); !ok {
		t.Error("reset key should be allowed")
	}
}

func TestLimiter_ZeroRateDisables(t *testing.T) {
	l := New(0, 1)
	defer l.Stop()
	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow("k"); !ok {
			t.Fatalf("request %d limited with rate disabled", i+1)
		}
	}
}

func TestMiddleware(t *testing.T) {
	l := New(0.001, 1)
	defer l.Stop()

	h := Middleware(l, func(r *http.Request) string { return r.Header.Get("X-User") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }),
	)

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/courses/x/pay", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("a"); rec.Code != http.StatusCreated {
		t.Fatalf("first = %d", rec.Code)
	}
	rec := do("a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	// empty key passes through
	for i := 0; i < 3; i++ {
		if rec := do(""); rec.Code != http.StatusCreated {
			t.Fatalf("anonymous = %d", rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Errorf("RemoteAddr: got %q", got)
	}
	req.Header.Set("X-Real-IP", "192.168.1.9")
	if got := ClientIP(req); got != "192.168.1.9" {
		t.Errorf("X-Real-IP: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 10.1.1.1")
	if got := ClientIP(req); got != "203.0.113.1" {
		t.Errorf("X-Forwarded-For: got %q", got)
	}
}

func TestLoginLimiter(t *testing.T) {
	ll := NewLoginLimiter(0.001, 2)
	defer ll.Stop()

	req := func(ip string) *http.Request {
		r := httptest.NewRequest("POST", "/login", nil)
		r.RemoteAddr = ip + ":1"
		return r
	}

	// Same email from different IPs is still limited per account.
	if ok, _ := ll.Check(req("1.1.1.1"), "Ana@example.com"); !ok {
		t.Fatal("first attempt rejected")
	}
	if ok, _ := ll.Check(req("2.2.2.2"), "ana@example.com "); !ok {
		t.Fatal("second attempt rejected")
	}
	if ok, _ := ll.Check(req("3.3.3.3"), "ANA@example.com"); ok {
		t.Fatal("third attempt for same account should be limited")
	}

	ll.ResetEmail("ana@example.com")
	if ok, _ := ll.Check(req("4.4.4.4"), "ana@example.com"); !ok {
		t.Error("attempt after reset rejected")
	}
}

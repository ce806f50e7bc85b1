package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func TestRequestIDReusesInboundHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimiddleware.GetReqID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if seen != "req-123" || rr.Header().Get("X-Request-Id") != "req-123" {
		t.Fatalf("expected inbound id to be reused, ctx=%q header=%q", seen, rr.Header().Get("X-Request-Id"))
	}
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "has spaces")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	got := rr.Header().Get("X-Request-Id")
	if got == "" || got == "has spaces" {
		t.Fatalf("expected generated id, got %q", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy", "Content-Security-Policy"} {
		if rr.Header().Get(name) == "" {
			t.Fatalf("expected %s header", name)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("did not expect HSTS on plain http")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://stadium.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	cases := []struct {
		origin string
		want   int
	}{
		{"https://stadium.example.com", http.StatusNoContent},
		{"https://evil.example.com", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/votes", nil)
		req.Header.Set("Origin", tc.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("origin %s: expected %d, got %d", tc.origin, tc.want, rr.Code)
		}
	}
}

func TestCORSSimpleRequestSetsAllowOrigin(t *testing.T) {
	h := CORS([]string{"https://stadium.example.com/"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://stadium.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://stadium.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestBodyLimit(t *testing.T) {
	h := BodyLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	small := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, small)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for small body, got %d", rr.Code)
	}

	large := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, large)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for large body, got %d", rr.Code)
	}
}

func TestParseRequestIP(t *testing.T) {
	cases := map[string]string{
		"10.0.0.7:5123":     "10.0.0.7",
		"[2001:db8::1]:443": "2001:db8::1",
		"192.168.1.1":       "192.168.1.1",
	}
	for addr, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := ClientIP(req); got != want {
			t.Fatalf("ClientIP(%q)=%q want %q", addr, got, want)
		}
	}
}

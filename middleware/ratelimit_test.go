package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.HandlerFunc, remoteAddr, realIP string) int {
	r := httptest.NewRequest(http.MethodGet, "/pixel", nil)
	r.RemoteAddr = remoteAddr
	if realIP != "" {
		r.Header.Set("X-Real-IP", realIP)
	}
	w := httptest.NewRecorder()
	h(w, r)
	return w.Code
}

func TestClientIP(t *testing.T) {
	trustAll := func(string) bool { return true }

	tests := []struct {
		name    string
		remote  string
		realIP  string
		xff     string
		trusted func(string) bool
		want    string
	}{
		{"direct connection", "192.0.2.5:4321", "", "", nil, "192.0.2.5"},
		{"spoofed header without trusted proxy", "192.0.2.5:4321", "10.9.9.9", "", nil, "192.0.2.5"},
		{"real ip behind trusted proxy", "127.0.0.1:80", "203.0.113.4", "", trustAll, "203.0.113.4"},
		{"forwarded-for first entry", "127.0.0.1:80", "", "203.0.113.4, 70.1.1.1", trustAll, "203.0.113.4"},
		{"untrusted proxy keeps socket address", "192.0.2.5:4321", "203.0.113.4", "", func(string) bool { return false }, "192.0.2.5"},
		{"remote addr without port", "192.0.2.5", "", "", nil, "192.0.2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/pixel", nil)
			r.RemoteAddr = tt.remote
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(r, tt.trusted); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitIgnoresSpoofedHeadersFromDirectClient(t *testing.T) {
	h := RateLimit(1, 0, nil, okHandler())

	// Rotating X-Real-IP must not reset the counter: without a trusted
	// proxy the socket address is the rate key.
	if code := doRequest(h, "203.0.113.7:1111", "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first request = %d, want 200", code)
	}
	limited := false
	for i := 0; i < 5; i++ {
		if doRequest(h, "203.0.113.7:1111", fmt.Sprintf("10.0.0.%d", i+2)) == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("spoofed X-Real-IP rotation evaded the per-IP limit")
	}
}

func TestRateLimitHonorsForwardedClientFromTrustedProxy(t *testing.T) {
	trusted := func(addr string) bool { return strings.HasPrefix(addr, "198.51.100.9:") }
	h := RateLimit(1, 0, trusted, okHandler())

	// Distinct forwarded clients keep independent windows.
	if code := doRequest(h, "198.51.100.9:2000", "192.0.2.10"); code != http.StatusOK {
		t.Fatalf("first client = %d, want 200", code)
	}
	if code := doRequest(h, "198.51.100.9:2001", "192.0.2.11"); code != http.StatusOK {
		t.Fatalf("second client = %d, want 200", code)
	}
	// A repeat from the first forwarded client exceeds its window.
	if code := doRequest(h, "198.51.100.9:2002", "192.0.2.10"); code != http.StatusTooManyRequests {
		t.Errorf("repeated client = %d, want 429", code)
	}
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	h := RateLimit(0, 0, nil, okHandler())
	for i := 0; i < 10; i++ {
		if code := doRequest(h, "203.0.113.50:1111", ""); code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200 with limiting disabled", i, code)
		}
	}
}

package middleware

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type counter struct {
	count      int
	windowFrom time.Time
}

var (
	muCounts sync.Mutex
	counts   = map[string]*counter{}
)

// cleanerInterval is how often idle rate-limit entries are swept. 2× the
// window keeps memory low while ensuring entries expire shortly after their
// window rolls over.
const cleanerInterval = 2 * time.Minute

// StartCleaner removes stale per-IP counters periodically. Call once from
// main; it runs until the process exits.
func StartCleaner() {
	ticker := time.NewTicker(cleanerInterval)
	defer ticker.Stop()
	for range ticker.C {
		muCounts.Lock()
		now := time.Now()
		for key, c := range counts {
			if now.Sub(c.windowFrom) > cleanerInterval {
				delete(counts, key)
			}
		}
		muCounts.Unlock()
	}
}

// isOverLimit checks whether ip has exceeded perMin+burst requests in the
// current one-minute window.
func isOverLimit(ip string, perMin, burst int) bool {
	if perMin <= 0 {
		return false
	}
	now := time.Now()
	muCounts.Lock()
	defer muCounts.Unlock()
	c, ok := counts[ip]
	if !ok || now.Sub(c.windowFrom) > time.Minute {
		counts[ip] = &counter{count: 1, windowFrom: now}
		return false
	}
	if c.count >= perMin+burst {
		return true
	}
	c.count++
	return false
}

// clientIP returns the real client IP address.
//
// X-Real-IP and X-Forwarded-For are honoured ONLY when the TCP connection
// originates from a trusted proxy. Without one the raw RemoteAddr is always
// used, preventing IP spoofing in direct / LAN deployments.
func clientIP(r *http.Request, trustedProxy func(string) bool) string {
	if trustedProxy != nil && trustedProxy(r.RemoteAddr) {
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			// XFF is a comma-separated list; the leftmost entry is the client.
			if idx := strings.IndexByte(xf, ','); idx >= 0 {
				return strings.TrimSpace(xf[:idx])
			}
			return strings.TrimSpace(xf)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit enforces a per-IP fixed-window limit in front of the image
// handler. trustedProxy decides whether forwarded-client headers from a
// given remote address may be believed; nil trusts none.
func RateLimit(perMin, burst int, trustedProxy func(string) bool, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, trustedProxy)
		if isOverLimit(ip, perMin, burst) {
			log.Printf("Rate limit exceeded for IP: %s", ip)
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}

package source

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Hiprax/pixel-serve-server/utils"
)

// ssrfSafeDialer wraps net.Dialer and refuses connections to private or
// reserved addresses. The first resolved IP is pinned so a second lookup
// inside the stdlib dialer cannot be rebound to a different host.
type ssrfSafeDialer struct {
	inner *net.Dialer
}

func (d *ssrfSafeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil || len(ips) == 0 {
		return nil, fmt.Errorf("DNS resolution failed for %s", host)
	}

	for _, ipAddr := range ips {
		if isBlockedIP(ipAddr.IP) {
			return nil, fmt.Errorf("connection to %s (%s) is blocked", host, ipAddr.IP)
		}
	}

	resolvedAddr := net.JoinHostPort(ips[0].IP.String(), port)
	return d.inner.DialContext(ctx, network, resolvedAddr)
}

// buildTransport assembles the outbound transport once per engine: SSRF-safe
// dialer, optional proxy, and idle-connection limits suited to a handler
// that fetches from a small set of allow-listed hosts.
func (e *Engine) buildTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   e.cfg.RequestTimeout,
		KeepAlive: 30 * time.Second,
	}
	dial := dialer.DialContext
	if !e.cfg.AllowPrivateHosts {
		dial = (&ssrfSafeDialer{inner: dialer}).DialContext
	}

	t := &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: e.cfg.InsecureSkipVerify}, //nolint:gosec
		DialContext:           dial,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: e.cfg.RequestTimeout,
	}

	if e.cfg.ProxyHost != "" {
		proxyURL := &url.URL{
			Scheme: e.cfg.ProxyType,
			Host:   net.JoinHostPort(e.cfg.ProxyHost, e.cfg.ProxyPort),
		}
		if e.cfg.ProxyUsername != "" {
			proxyURL.User = url.UserPassword(e.cfg.ProxyUsername, e.cfg.ProxyPassword)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}
	return t
}

func (e *Engine) client() *http.Client {
	e.clientOnce.Do(func() {
		e.httpClient = &http.Client{
			Transport: e.buildTransport(),
			Timeout:   e.cfg.RequestTimeout,
		}
	})
	return e.httpClient
}

// fetch issues a bounded GET: hard timeout, response-size cap, 2xx only,
// and a content-type that must be a permitted image MIME. The size cap
// aborts the transfer rather than merely truncating the read — the request
// context is canceled the moment the limit is crossed.
func (e *Engine) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; PixelServe/1.0)")
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := e.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if !utils.IsAcceptedImageMIME(ct) {
		return nil, fmt.Errorf("unacceptable content type %q", ct)
	}

	maxBytes := e.cfg.MaxDownloadBytes
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("declared size %d exceeds limit %d", resp.ContentLength, maxBytes)
	}

	// Read one byte past the cap so an oversized body is distinguishable
	// from one that exactly fits.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if int64(len(body)) > maxBytes {
		cancel() // abort the transfer, don't drain the rest
		return nil, fmt.Errorf("response exceeds limit %d", maxBytes)
	}
	return body, nil
}

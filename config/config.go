package config

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FolderResolver maps an identity to a private storage root. It is supplied
// by the embedding application and may be slow or never settle; callers must
// bound it with a timeout. An empty path or an error means "use the default
// base directory".
type FolderResolver func(ctx context.Context, r *http.Request, identity string) (string, error)

// Options is the partial, caller-supplied configuration. Zero values mean
// "use the default". ETag emission is on by default, hence the inverted
// DisableETag flag.
type Options struct {
	BaseDir string

	// IDTransform rewrites the userId parameter before it reaches the
	// folder resolver. Nil means identity.
	IDTransform func(string) string

	// FolderResolver resolves private storage roots. Nil disables
	// private-folder handling (private requests use BaseDir).
	FolderResolver FolderResolver

	// InternalHost is the service's own public hostname. Sources whose URL
	// host matches it (with or without a www prefix) are served from local
	// storage after stripping RoutePrefix from the URL path. Accepts either
	// a bare hostname or a full URL.
	InternalHost string

	// RoutePrefix is stripped from internal URL paths. Nil means the
	// DefaultRoutePrefix pattern.
	RoutePrefix *regexp.Regexp

	// AllowedRemoteHosts is the allow-list for external fetches. A source
	// host absent from this list is never contacted.
	AllowedRemoteHosts []string

	// AllowPrivateHosts disables the private-address guard on outbound
	// fetches. Only for LAN deployments where allow-listed hosts resolve
	// to internal addresses.
	AllowPrivateHosts bool

	// TrustedProxies lists addresses or CIDRs of reverse proxies whose
	// X-Real-IP / X-Forwarded-For headers may be believed. Empty means no
	// proxy is trusted and the socket address is always the client.
	TrustedProxies []string

	CacheControl string
	DisableETag  bool

	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int
	DefaultQuality       int

	RequestTimeout   time.Duration
	MaxDownloadBytes int64

	// Outbound proxy for remote fetches.
	ProxyType     string
	ProxyHost     string
	ProxyPort     string
	ProxyUsername string
	ProxyPassword string

	InsecureSkipVerify bool
}

// Config is the fully resolved, immutable handler configuration. It is
// created once per handler registration and shared read-only by every
// request.
type Config struct {
	BaseDir        string
	IDTransform    func(string) string
	FolderResolver FolderResolver

	InternalHost string
	RoutePrefix  *regexp.Regexp

	allowedHosts      map[string]struct{}
	AllowPrivateHosts bool
	trustedProxies    []*net.IPNet

	CacheControl string
	ETagEnabled  bool

	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int
	DefaultQuality       int

	RequestTimeout   time.Duration
	MaxDownloadBytes int64

	ProxyType     string
	ProxyHost     string
	ProxyPort     string
	ProxyUsername string
	ProxyPassword string

	InsecureSkipVerify bool
}

// ValidationError reports a rejected configuration field. Configuration
// failures are fatal to handler registration, never per-request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var bareHostRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

// normalizeHost accepts a bare hostname or a full URL and returns the
// lowercased hostname, or an error when the value matches neither shape.
func normalizeHost(v string) (string, error) {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "://") {
		u, err := url.Parse(v)
		if err != nil || u.Hostname() == "" {
			return "", fmt.Errorf("not a parseable URL: %q", v)
		}
		return strings.ToLower(u.Hostname()), nil
	}
	host := v
	if h, _, err := splitHostPortLenient(v); err == nil {
		host = h
	}
	if !bareHostRe.MatchString(host) {
		return "", fmt.Errorf("not a hostname: %q", v)
	}
	return strings.ToLower(host), nil
}

// splitHostPortLenient splits "host:port" when the suffix is numeric,
// otherwise returns an error so bare hostnames pass through untouched.
func splitHostPortLenient(v string) (string, string, error) {
	i := strings.LastIndex(v, ":")
	if i < 0 {
		return "", "", fmt.Errorf("no port")
	}
	port := v[i+1:]
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", fmt.Errorf("no numeric port")
	}
	return v[:i], port, nil
}

// New validates opts, applies defaults, and returns an immutable Config.
func New(opts Options) (*Config, error) {
	if strings.TrimSpace(opts.BaseDir) == "" {
		return nil, &ValidationError{Field: "BaseDir", Reason: "must not be empty"}
	}

	cfg := &Config{
		BaseDir:        opts.BaseDir,
		IDTransform:    opts.IDTransform,
		FolderResolver: opts.FolderResolver,
		RoutePrefix:    opts.RoutePrefix,

		CacheControl: opts.CacheControl,
		ETagEnabled:  !opts.DisableETag,

		MinWidth:  opts.MinWidth,
		MaxWidth:  opts.MaxWidth,
		MinHeight: opts.MinHeight,
		MaxHeight: opts.MaxHeight,

		DefaultQuality:   opts.DefaultQuality,
		RequestTimeout:   opts.RequestTimeout,
		MaxDownloadBytes: opts.MaxDownloadBytes,

		ProxyType:     opts.ProxyType,
		ProxyHost:     opts.ProxyHost,
		ProxyPort:     opts.ProxyPort,
		ProxyUsername: opts.ProxyUsername,
		ProxyPassword: opts.ProxyPassword,

		InsecureSkipVerify: opts.InsecureSkipVerify,
		AllowPrivateHosts:  opts.AllowPrivateHosts,
	}

	if cfg.IDTransform == nil {
		cfg.IDTransform = func(s string) string { return s }
	}
	if cfg.RoutePrefix == nil {
		cfg.RoutePrefix = regexp.MustCompile(DefaultRoutePrefix)
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = DefaultCacheControl
	}

	if opts.InternalHost != "" {
		host, err := normalizeHost(opts.InternalHost)
		if err != nil {
			return nil, &ValidationError{Field: "InternalHost", Reason: err.Error()}
		}
		cfg.InternalHost = host
	}

	if cfg.MinWidth == 0 {
		cfg.MinWidth = DefaultMinDimension
	}
	if cfg.MaxWidth == 0 {
		cfg.MaxWidth = DefaultMaxDimension
	}
	if cfg.MinHeight == 0 {
		cfg.MinHeight = DefaultMinDimension
	}
	if cfg.MaxHeight == 0 {
		cfg.MaxHeight = DefaultMaxDimension
	}
	for field, v := range map[string]int{
		"MinWidth": cfg.MinWidth, "MaxWidth": cfg.MaxWidth,
		"MinHeight": cfg.MinHeight, "MaxHeight": cfg.MaxHeight,
	} {
		if v < 0 {
			return nil, &ValidationError{Field: field, Reason: "must be positive"}
		}
	}
	if cfg.MinWidth > cfg.MaxWidth {
		return nil, &ValidationError{Field: "MinWidth", Reason: "must not exceed MaxWidth"}
	}
	if cfg.MinHeight > cfg.MaxHeight {
		return nil, &ValidationError{Field: "MinHeight", Reason: "must not exceed MaxHeight"}
	}

	if cfg.DefaultQuality == 0 {
		cfg.DefaultQuality = DefaultQuality
	}
	if cfg.DefaultQuality < 1 || cfg.DefaultQuality > 100 {
		return nil, &ValidationError{Field: "DefaultQuality", Reason: "must be within 1..100"}
	}

	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RequestTimeout < 0 {
		return nil, &ValidationError{Field: "RequestTimeout", Reason: "must be positive"}
	}

	if cfg.MaxDownloadBytes == 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	if cfg.MaxDownloadBytes < 0 {
		return nil, &ValidationError{Field: "MaxDownloadBytes", Reason: "must be positive"}
	}

	for _, p := range opts.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		network, err := parseProxyAddr(p)
		if err != nil {
			return nil, &ValidationError{Field: "TrustedProxies", Reason: err.Error()}
		}
		cfg.trustedProxies = append(cfg.trustedProxies, network)
	}

	cfg.allowedHosts = make(map[string]struct{}, len(opts.AllowedRemoteHosts))
	for _, h := range opts.AllowedRemoteHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			cfg.allowedHosts[h] = struct{}{}
		}
	}

	return cfg, nil
}

// HostAllowed reports whether a remote host may be fetched from. Both the
// bare hostname and the host:port form of the source URL are accepted.
func (c *Config) HostAllowed(host string) bool {
	_, ok := c.allowedHosts[strings.ToLower(host)]
	return ok
}

// parseProxyAddr accepts a single IP or a CIDR and returns it as a network.
func parseProxyAddr(p string) (*net.IPNet, error) {
	if strings.Contains(p, "/") {
		_, network, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("not a CIDR: %q", p)
		}
		return network, nil
	}
	ip := net.ParseIP(p)
	if ip == nil {
		return nil, fmt.Errorf("not an IP address: %q", p)
	}
	bits := 128
	if ip.To4() != nil {
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// IsTrustedProxy reports whether the connection's remote address belongs to
// a configured trusted proxy. Forwarded-client headers must only be honored
// for connections that pass this check.
func (c *Config) IsTrustedProxy(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range c.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

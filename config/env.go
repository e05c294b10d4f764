package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv builds Options from environment variables. Missing variables keep
// their zero value so New applies the documented defaults. Malformed numeric
// values are logged and ignored rather than failing startup.
func FromEnv() Options {
	var opts Options

	override := func(target *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*target = v
				return
			}
		}
	}

	override(&opts.BaseDir, "PIXEL_BASE_DIR", "IMAGE_FOLDER")
	override(&opts.InternalHost, "PIXEL_INTERNAL_HOST", "WEBSITE_URL")
	override(&opts.CacheControl, "PIXEL_CACHE_CONTROL")
	override(&opts.ProxyType, "PROXY_TYPE")
	override(&opts.ProxyHost, "PROXY_HOST", "PROXY_ADDRESS")
	override(&opts.ProxyPort, "PROXY_PORT")
	override(&opts.ProxyUsername, "PROXY_USER", "PROXY_USERNAME")
	override(&opts.ProxyPassword, "PROXY_PASS", "PROXY_PASSWORD")

	if v := os.Getenv("PIXEL_ALLOWED_HOSTS"); v != "" {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				opts.AllowedRemoteHosts = append(opts.AllowedRemoteHosts, h)
			}
		}
	}
	if v := os.Getenv("PIXEL_TRUSTED_PROXIES"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				opts.TrustedProxies = append(opts.TrustedProxies, p)
			}
		}
	}

	intEnv := func(target *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*target = n
			} else {
				log.Printf("Warning: ignoring invalid %s=%q", key, v)
			}
		}
	}
	intEnv(&opts.MinWidth, "PIXEL_MIN_WIDTH")
	intEnv(&opts.MaxWidth, "PIXEL_MAX_WIDTH")
	intEnv(&opts.MinHeight, "PIXEL_MIN_HEIGHT")
	intEnv(&opts.MaxHeight, "PIXEL_MAX_HEIGHT")
	intEnv(&opts.DefaultQuality, "PIXEL_QUALITY")

	if v := os.Getenv("PIXEL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.RequestTimeout = time.Duration(n) * time.Millisecond
		} else {
			log.Printf("Warning: ignoring invalid PIXEL_TIMEOUT_MS=%q", v)
		}
	}
	if v := os.Getenv("PIXEL_MAX_DOWNLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			opts.MaxDownloadBytes = n
		} else {
			log.Printf("Warning: ignoring invalid PIXEL_MAX_DOWNLOAD_BYTES=%q", v)
		}
	}
	if os.Getenv("PIXEL_DISABLE_ETAG") == "true" {
		opts.DisableETag = true
	}
	if os.Getenv("INSECURE_SKIP_VERIFY") == "true" {
		opts.InsecureSkipVerify = true
	}
	if os.Getenv("PIXEL_ALLOW_PRIVATE_HOSTS") == "true" {
		opts.AllowPrivateHosts = true
	}

	return opts
}

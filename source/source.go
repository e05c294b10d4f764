// Package source classifies an image source string as local, internal, or
// external and resolves it to raw bytes. Every expected failure — bad path,
// disallowed host, oversized payload, wrong MIME, timeout — degrades to the
// category's placeholder so callers cannot distinguish a rejected source
// from a genuinely missing image.
package source

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Hiprax/pixel-serve-server/config"
	"github.com/Hiprax/pixel-serve-server/fallback"
	"github.com/Hiprax/pixel-serve-server/utils"
)

// Engine resolves source strings against an immutable handler
// configuration. Safe for concurrent use.
type Engine struct {
	cfg *config.Config

	clientOnce sync.Once
	httpClient *http.Client
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Result carries resolved bytes plus whether they are placeholder content.
// Callers must not transform placeholder bytes — they are served as-is so
// the response body stays byte-identical to the packaged asset.
type Result struct {
	Bytes    []byte
	Fallback bool
}

// Resolve maps a source string to image bytes. The returned error is
// non-nil only when even the fallback asset could not be loaded; every
// other failure is absorbed into a fallback Result.
func (e *Engine) Resolve(ctx context.Context, src, baseDir, category string) (Result, error) {
	if strings.TrimSpace(src) == "" {
		return e.placeholder(category)
	}

	// Classification is "does it parse as an absolute URL with a host",
	// not "does it start with http" — a source like "httpfoo" is a local
	// path, never a network attempt.
	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return e.local(src, baseDir, category)
	}

	host := strings.ToLower(u.Hostname())
	if e.cfg.InternalHost != "" &&
		(host == e.cfg.InternalHost || host == "www."+e.cfg.InternalHost) {
		return e.local(e.stripRoutePrefix(u.Path), baseDir, category)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		log.Printf("source: scheme %q rejected for %s", u.Scheme, src)
		return e.placeholder(category)
	}
	if !e.cfg.HostAllowed(u.Hostname()) && !e.cfg.HostAllowed(u.Host) {
		log.Printf("source: host %q not in allow-list", u.Host)
		return e.placeholder(category)
	}

	body, err := e.fetch(ctx, u.String())
	if err != nil {
		log.Printf("source: fetch %s: %v", u.Host, err)
		return e.placeholder(category)
	}
	return Result{Bytes: body}, nil
}

// stripRoutePrefix removes the configured routing prefix from an internal
// URL path and returns the remainder as a relative path.
func (e *Engine) stripRoutePrefix(p string) string {
	p = e.cfg.RoutePrefix.ReplaceAllString(p, "")
	return strings.TrimLeft(p, "/")
}

// local reads a file under baseDir after the containment check. Oversized
// files and directories count as failures like any other I/O error.
func (e *Engine) local(relPath, baseDir, category string) (Result, error) {
	if !utils.IsPathSafe(baseDir, relPath) {
		log.Printf("source: unsafe path %q", relPath)
		return e.placeholder(category)
	}

	full := filepath.Join(baseDir, filepath.Clean(relPath))
	fi, err := os.Stat(full)
	if err != nil {
		log.Printf("source: stat %q: %v", relPath, err)
		return e.placeholder(category)
	}
	if fi.IsDir() {
		log.Printf("source: %q is a directory", relPath)
		return e.placeholder(category)
	}
	if e.cfg.MaxDownloadBytes > 0 && fi.Size() > e.cfg.MaxDownloadBytes {
		log.Printf("source: %q exceeds size limit", relPath)
		return e.placeholder(category)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		log.Printf("source: read %q: %v", relPath, err)
		return e.placeholder(category)
	}
	return Result{Bytes: data}, nil
}

// placeholder loads the category fallback. Only a failure here — the
// packaged assets themselves being unreadable — surfaces as an error.
func (e *Engine) placeholder(category string) (Result, error) {
	data, err := fallback.Load(category)
	if err != nil {
		return Result{}, err
	}
	return Result{Bytes: data, Fallback: true}, nil
}

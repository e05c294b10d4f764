// Package handlers assembles image responses: parameter resolution, optional
// private-folder authorization, source resolution, transformation, and
// header computation, with placeholder delivery on every failure path.
package handlers

import (
	"log"
	"net/http"

	"github.com/Hiprax/pixel-serve-server/config"
	"github.com/Hiprax/pixel-serve-server/fallback"
	"github.com/Hiprax/pixel-serve-server/folder"
	"github.com/Hiprax/pixel-serve-server/params"
	"github.com/Hiprax/pixel-serve-server/source"
	"github.com/Hiprax/pixel-serve-server/transform"
	"github.com/Hiprax/pixel-serve-server/utils"
)

// Pixel is the image-delivery handler. One instance per registration,
// sharing its immutable config and engine across requests.
type Pixel struct {
	cfg    *config.Config
	engine *source.Engine
}

func New(cfg *config.Config) *Pixel {
	return &Pixel{cfg: cfg, engine: source.NewEngine(cfg)}
}

func (p *Pixel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := params.Resolve(r.URL.Query(), p.cfg)
	if err != nil {
		// Malformed client input is served the same placeholder as any
		// transient failure — validation detail never reaches the caller.
		// Category is unknown before parameters parse, so normal applies.
		log.Printf("pixel: %v", err)
		p.serveFallback(w, fallback.CategoryNormal)
		return
	}
	category := string(req.Type)

	baseDir := p.cfg.BaseDir
	if req.Folder == params.VisibilityPrivate {
		if dir := folder.Resolve(r.Context(), p.cfg.FolderResolver, r,
			req.UserID, p.cfg.RequestTimeout, p.cfg.IDTransform); dir != "" {
			baseDir = dir
		}
	}

	res, err := p.engine.Resolve(r.Context(), req.Source, baseDir, category)
	if err != nil {
		p.fatal(w, err)
		return
	}
	if res.Fallback {
		p.serveFallbackBytes(w, res.Bytes, category)
		return
	}

	body, err := transform.Apply(res.Bytes, transform.Options{
		Width:   req.Width,
		Height:  req.Height,
		Format:  req.Format,
		Quality: req.Quality,
	})
	if err != nil {
		log.Printf("pixel: transform %q: %v", req.Source, err)
		p.serveFallback(w, category)
		return
	}

	var etag string
	if p.cfg.ETagEnabled {
		etag = computeETag(body)
		if r.Header.Get("If-None-Match") == etag {
			h := w.Header()
			h.Set("ETag", etag)
			h.Set("Cache-Control", p.cfg.CacheControl)
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	writeImage(w, body,
		utils.MIMEForFormat(req.Format),
		utils.DispositionFilename(req.Source, req.Format),
		p.cfg.CacheControl,
		etag,
	)
}

// serveFallback loads and sends the category placeholder. The only error
// that can surface here is the placeholder assets themselves being
// unreadable, which is the one condition allowed to become a server error.
func (p *Pixel) serveFallback(w http.ResponseWriter, category string) {
	data, err := fallback.Load(category)
	if err != nil {
		p.fatal(w, err)
		return
	}
	p.serveFallbackBytes(w, data, category)
}

func (p *Pixel) serveFallbackBytes(w http.ResponseWriter, data []byte, category string) {
	writeImage(w, data,
		"image/jpeg",
		fallback.Filename(category),
		config.FallbackCacheControl,
		"",
	)
}

func (p *Pixel) fatal(w http.ResponseWriter, err error) {
	log.Printf("pixel: fatal: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

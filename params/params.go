// Package params validates and normalizes per-request image parameters
// against the schema ranges and the configured bounds.
package params

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Hiprax/pixel-serve-server/config"
)

// Fixed schema ranges. A dimension outside this range is a hard validation
// error; a dimension inside it but outside the configured bounds is clamped.
const (
	SchemaMinDimension = 50
	SchemaMaxDimension = 4000
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type Category string

const (
	CategoryNormal Category = "normal"
	CategoryAvatar Category = "avatar"
)

// formats is the closed output-format set. Unrecognized values default to
// jpeg rather than failing.
var formats = map[string]bool{
	"jpeg": true, "jpg": true, "png": true, "webp": true,
	"gif": true, "tiff": true, "avif": true, "svg": true,
}

// known lists every accepted query key; anything else is rejected outright.
var known = map[string]bool{
	"src": true, "format": true, "width": true, "height": true,
	"quality": true, "folder": true, "userId": true, "type": true,
}

// ImageRequest is the normalized per-request input. Built fresh for every
// request and never persisted.
type ImageRequest struct {
	Source  string
	Format  string
	Width   int // 0 = not requested
	Height  int // 0 = not requested
	Quality int
	Folder  Visibility
	Type    Category
	UserID  string
}

// ValidationError reports a rejected request parameter.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("params: %s: %s", e.Param, e.Reason)
}

// clamp constrains v into [lo, hi]. Distinct from schema validation: values
// reaching clamp have already passed the hard range check.
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dimension parses a numeric string, enforces the schema range, then clamps
// into the configured bounds.
func dimension(name, raw string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Param: name, Reason: "must be an integer"}
	}
	if n < SchemaMinDimension || n > SchemaMaxDimension {
		return 0, &ValidationError{Param: name, Reason: fmt.Sprintf(
			"must be within %d..%d", SchemaMinDimension, SchemaMaxDimension)}
	}
	return clamp(n, lo, hi), nil
}

// Resolve validates raw query values against cfg and returns the normalized
// request. It has no side effects.
func Resolve(values url.Values, cfg *config.Config) (*ImageRequest, error) {
	for key := range values {
		if !known[key] {
			return nil, &ValidationError{Param: key, Reason: "unrecognized parameter"}
		}
	}

	req := &ImageRequest{
		Source:  values.Get("src"),
		Format:  "jpeg",
		Quality: cfg.DefaultQuality,
		Folder:  VisibilityPublic,
		Type:    CategoryNormal,
	}

	if f := strings.ToLower(strings.TrimSpace(values.Get("format"))); formats[f] {
		req.Format = f
	}

	if raw := values.Get("width"); raw != "" {
		w, err := dimension("width", raw, cfg.MinWidth, cfg.MaxWidth)
		if err != nil {
			return nil, err
		}
		req.Width = w
	}
	if raw := values.Get("height"); raw != "" {
		h, err := dimension("height", raw, cfg.MinHeight, cfg.MaxHeight)
		if err != nil {
			return nil, err
		}
		req.Height = h
	}

	if raw := values.Get("quality"); raw != "" {
		q, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, &ValidationError{Param: "quality", Reason: "must be an integer"}
		}
		if q < 1 || q > 100 {
			return nil, &ValidationError{Param: "quality", Reason: "must be within 1..100"}
		}
		req.Quality = q
	}

	if raw := values.Get("folder"); raw != "" {
		switch Visibility(strings.ToLower(raw)) {
		case VisibilityPublic:
		case VisibilityPrivate:
			req.Folder = VisibilityPrivate
		default:
			return nil, &ValidationError{Param: "folder", Reason: "must be public or private"}
		}
	}

	if raw := values.Get("type"); raw != "" {
		switch Category(strings.ToLower(raw)) {
		case CategoryNormal:
		case CategoryAvatar:
			req.Type = CategoryAvatar
		default:
			return nil, &ValidationError{Param: "type", Reason: "must be normal or avatar"}
		}
	}

	if _, ok := values["userId"]; ok {
		id := strings.TrimSpace(values.Get("userId"))
		// Length is in characters, not bytes; multibyte identities count
		// one per rune.
		if n := utf8.RuneCountInString(id); n < config.MinIdentityLength || n > config.MaxIdentityLength {
			return nil, &ValidationError{Param: "userId", Reason: fmt.Sprintf(
				"must be %d..%d characters after trimming",
				config.MinIdentityLength, config.MaxIdentityLength)}
		}
		req.UserID = id
	}

	return req, nil
}

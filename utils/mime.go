package utils

import "strings"

// acceptedImageMIMEs is the set of remote content types trusted enough to be
// handed to the codec. Anything else is treated as a resolution failure.
var acceptedImageMIMEs = map[string]bool{
	"image/jpeg":    true,
	"image/jpg":     true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/bmp":     true,
	"image/tiff":    true,
	"image/avif":    true,
	"image/svg+xml": true,
}

// formatMIMEs maps output formats to the Content-Type sent to clients.
var formatMIMEs = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"tiff": "image/tiff",
	"avif": "image/avif",
	"svg":  "image/svg+xml",
}

// NormalizeContentType strips parameters (everything after the first ';'),
// lowercases, and trims the raw header value.
func NormalizeContentType(ct string) string {
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsAcceptedImageMIME reports whether a normalized content type is a
// permitted image type for remote fetches.
func IsAcceptedImageMIME(ct string) bool {
	return acceptedImageMIMEs[NormalizeContentType(ct)]
}

// MIMEForFormat returns the response Content-Type for an output format,
// defaulting to image/jpeg for anything unknown.
func MIMEForFormat(format string) string {
	if m, ok := formatMIMEs[strings.ToLower(format)]; ok {
		return m
	}
	return "image/jpeg"
}

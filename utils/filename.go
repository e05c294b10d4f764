package utils

import (
	"path"
	"strings"
)

// SanitizeFilename replaces quote, backslash, and control characters with an
// underscore so the value can be embedded in a quoted Content-Disposition
// header without breaking its framing.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '"' || c == '\'' || c == '\\' || c < 0x20 || c == 0x7f {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// DispositionFilename derives the download name for a source: its base name
// with the extension replaced by the output format, sanitized for header
// embedding. Sources without a usable base name fall back to "image".
func DispositionFilename(source, format string) string {
	base := path.Base(strings.ReplaceAll(source, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		base = "image"
	}
	return SanitizeFilename(base + "." + format)
}

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
)

// computeETag hashes the final response bytes. The value is content-derived,
// so identical requests always produce identical tags.
func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// writeImage emits the response headers and the body in one place so a body
// is written exactly once per request.
func writeImage(w http.ResponseWriter, body []byte, contentType, filename, cacheControl, etag string) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	h.Set("Cache-Control", cacheControl)
	if etag != "" {
		h.Set("ETag", etag)
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

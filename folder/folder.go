// Package folder bounds the externally supplied private-folder resolver,
// which may be slow or never settle.
package folder

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/Hiprax/pixel-serve-server/config"
)

// Resolve runs the resolver with identity (after idTransform) and races it
// against timeout. A timed-out, failed, or empty result yields "" and the
// caller keeps its default base directory. The result channel is a buffered
// single-assignment slot: a resolver that finishes after the timer fired
// writes into the buffer and is discarded, so a late result can never touch
// an already-sent response.
func Resolve(ctx context.Context, resolver config.FolderResolver, r *http.Request,
	identity string, timeout time.Duration, idTransform func(string) string) string {

	if resolver == nil {
		return ""
	}
	if identity != "" && idTransform != nil {
		identity = idTransform(identity)
	}

	result := make(chan string, 1)
	go func() {
		path, err := resolver(ctx, r, identity)
		if err != nil {
			log.Printf("folder: resolver failed for %q: %v", identity, err)
			result <- ""
			return
		}
		result <- path
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case path := <-result:
		return path
	case <-timer.C:
		log.Printf("folder: resolver timed out after %s for %q", timeout, identity)
		return ""
	case <-ctx.Done():
		return ""
	}
}

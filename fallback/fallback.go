// Package fallback supplies the pre-packaged placeholder images served
// whenever genuine resolution or transformation fails.
package fallback

import (
	"embed"
	"fmt"
	"sync"
)

//go:embed assets/placeholder.jpg assets/avatar.jpg
var assets embed.FS

// Category selects which placeholder applies to a request.
const (
	CategoryNormal = "normal"
	CategoryAvatar = "avatar"
)

var files = map[string]string{
	CategoryNormal: "assets/placeholder.jpg",
	CategoryAvatar: "assets/avatar.jpg",
}

type asset struct {
	once sync.Once
	data []byte
	err  error
}

var cache = map[string]*asset{
	CategoryNormal: {},
	CategoryAvatar: {},
}

// Load returns the placeholder bytes for a category, reading the embedded
// asset once per process and serving the cached buffer afterwards. The
// returned slice is shared and must be treated as read-only. Unknown
// categories map to the normal placeholder.
func Load(category string) ([]byte, error) {
	a, ok := cache[category]
	if !ok {
		a = cache[CategoryNormal]
		category = CategoryNormal
	}
	a.once.Do(func() {
		a.data, a.err = assets.ReadFile(files[category])
		if a.err != nil {
			a.err = fmt.Errorf("loading fallback asset %q: %w", category, a.err)
		}
	})
	return a.data, a.err
}

// Filename returns the fixed disposition filename used on the fallback
// response path.
func Filename(category string) string {
	if category == CategoryAvatar {
		return "avatar.jpg"
	}
	return "placeholder.jpg"
}

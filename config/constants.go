package config

import "time"

const (
	// Dimension bounds applied when the caller does not configure its own.
	DefaultMinDimension = 50
	DefaultMaxDimension = 4000

	DefaultQuality = 80

	// DefaultRequestTimeout bounds both remote fetches and the private
	// folder-resolution callback.
	DefaultRequestTimeout = 5 * time.Second

	// DefaultMaxDownloadBytes caps remote response bodies and local file
	// sizes before they are read into memory.
	DefaultMaxDownloadBytes = 5_000_000
)

const (
	// DefaultCacheControl is sent with successfully transformed images.
	DefaultCacheControl = "public, max-age=86400, stale-while-revalidate=604800"

	// FallbackCacheControl is deliberately short: placeholder content must
	// not be cached as long as real images.
	FallbackCacheControl = "public, max-age=60"
)

// DefaultRoutePrefix is the routing prefix stripped from internal URLs
// before their path is treated as a local file reference.
const DefaultRoutePrefix = `^/api/v1/`

const (
	MinIdentityLength = 1
	MaxIdentityLength = 128
)

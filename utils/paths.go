package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// IsPathSafe reports whether candidate, taken relative to baseDir, stays
// strictly inside baseDir. It is the single trust boundary for local file
// access: every local read must pass through it first.
//
// String-level cleaning alone is not enough — a ".." segment combined with a
// symlink inside baseDir can still escape, so both paths are resolved to
// their canonical (symlink-free) form before the containment check. All
// internal failures report false; the function never panics.
func IsPathSafe(baseDir, candidate string) bool {
	if baseDir == "" || candidate == "" {
		return false
	}

	// NUL and control bytes have no business in a file name.
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < 0x20 {
			return false
		}
	}

	// Absolute forms: POSIX, Windows drive letters, UNC, and a bare leading
	// separator of either flavor.
	if filepath.IsAbs(candidate) ||
		strings.HasPrefix(candidate, "/") ||
		strings.HasPrefix(candidate, "\\") ||
		isDrivePath(candidate) {
		return false
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return false
	}
	realBase, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return false
	}
	fi, err := os.Stat(realBase)
	if err != nil || !fi.IsDir() {
		return false
	}

	joined := filepath.Join(realBase, filepath.Clean(candidate))
	realTarget, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(realBase, realTarget)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false
	}
	return true
}

// isDrivePath catches C:\ style prefixes even on non-Windows hosts, where
// filepath.IsAbs would let them through.
func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

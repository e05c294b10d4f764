package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPathSafe(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "photo.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(base, "sub", "inner.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"simple file", "photo.jpg", true},
		{"subdirectory file", "sub/inner.png", true},
		{"dot segment inside base", "sub/../photo.jpg", true},
		{"empty path", "", false},
		{"parent traversal", "../etc/passwd", false},
		{"traversal in middle", "sub/../../outside.jpg", false},
		{"deep traversal", "a/../../../../etc/passwd", false},
		{"absolute path", "/etc/passwd", false},
		{"leading backslash", "\\evil", false},
		{"windows drive path", "C:\\Windows\\System32", false},
		{"windows drive lowercase", "c:/temp/x.jpg", false},
		{"UNC path", "\\\\server\\share", false},
		{"null byte injection", "photo\x00.jpg", false},
		{"control character", "pho\tto.jpg", false},
		{"escape char", "photo\x1b.jpg", false},
		{"url-encoded traversal stays literal", "%2e%2e/%2e%2e/etc/passwd", false},
		{"missing file", "does-not-exist.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPathSafe(base, tt.path); got != tt.expected {
				t.Errorf("IsPathSafe(%q, %q) = %v, want %v", base, tt.path, got, tt.expected)
			}
		})
	}
}

func TestIsPathSafeEmptyBase(t *testing.T) {
	if IsPathSafe("", "photo.jpg") {
		t.Error("IsPathSafe with empty base must be false")
	}
}

func TestIsPathSafeBaseNotDirectory(t *testing.T) {
	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if IsPathSafe(file, "photo.jpg") {
		t.Error("IsPathSafe with a file as base must be false")
	}
	if IsPathSafe(filepath.Join(base, "missing"), "photo.jpg") {
		t.Error("IsPathSafe with a missing base must be false")
	}
}

func TestIsPathSafeSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	outside := filepath.Join(root, "outside")
	for _, d := range []string{base, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	secret := filepath.Join(outside, "secret.jpg")
	if err := os.WriteFile(secret, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// A symlink inside base pointing outside must not pass containment
	// even though the joined string never leaves base.
	link := filepath.Join(base, "link.jpg")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if IsPathSafe(base, "link.jpg") {
		t.Error("symlink escape passed containment check")
	}

	// A symlink resolving within base is fine.
	inside := filepath.Join(base, "real.jpg")
	if err := os.WriteFile(inside, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	goodLink := filepath.Join(base, "alias.jpg")
	if err := os.Symlink(inside, goodLink); err != nil {
		t.Fatal(err)
	}
	if !IsPathSafe(base, "alias.jpg") {
		t.Error("in-base symlink rejected")
	}
}

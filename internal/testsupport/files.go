package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size filler bytes, making parent directories
// as needed. Sizes below one write a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	WriteMedia(t, path, string(bytes.Repeat([]byte{'B'}, int(max(size, 1)))))
}

// WriteMedia writes a stand-in media file with the given body and returns
// its path.
func WriteMedia(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "interview.mp4")
	dst := filepath.Join(dir, "out", "interview_es.mp4")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	content := []byte("dubbed video bytes")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != string(content) {
		t.Fatalf("content mismatch: got %q (%v)", got, err)
	}
	info, _ := os.Stat(dst)
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected 0644 copy, got %o", info.Mode().Perm())
	}
	assertNoPartials(t, filepath.Dir(dst))
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.mp4")
	if err := CopyFileVerified(filepath.Join(dir, "nope.mp4"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("dst should not exist, stat err=%v", err)
	}
}

func TestSaveLimited(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "upload.wav")

	n, err := SaveLimited(strings.NewReader("12345"), dst, 5)
	if err != nil || n != 5 {
		t.Fatalf("SaveLimited = %d, %v", n, err)
	}

	if _, err := SaveLimited(strings.NewReader("123456"), dst, 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "12345" {
		t.Fatalf("failed save must keep previous content, got %q", data)
	}

	fresh := filepath.Join(dir, "empty.wav")
	if _, err := SaveLimited(strings.NewReader(""), fresh, 0); err == nil {
		t.Fatal("expected error for empty stream")
	}
	if _, err := os.Stat(fresh); !os.IsNotExist(err) {
		t.Fatalf("empty upload should not leave a file, stat err=%v", err)
	}
	assertNoPartials(t, dir)
}

func assertNoPartials(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

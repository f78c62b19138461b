package deps

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	present := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	results := CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: " " + present + " "},
		{Name: "uvx", Command: "voxdub-test-no-such-binary"},
		{Name: "Coqui TTS", Command: "  ", Optional: true},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if got := results[0]; !got.Available || got.Path != present || got.Command != present || got.Detail != "" {
		t.Fatalf("unexpected status for present binary: %#v", got)
	}
	if got := results[1]; got.Available || got.Path != "" || got.Detail != `binary "voxdub-test-no-such-binary" not found` {
		t.Fatalf("unexpected status for missing binary: %#v", got)
	}
	if got := results[2]; got.Available || !got.Optional || got.Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %#v", got)
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: true},
		{Name: "Coqui TTS", Optional: true},
	}
	if got := MissingRequired(statuses); len(got) != 0 {
		t.Fatalf("optional gaps should not count as missing, got %v", got)
	}
	statuses = append(statuses, Status{Name: "FFprobe"}, Status{Name: "Python"})
	if got := MissingRequired(statuses); !slices.Equal(got, []string{"FFprobe", "Python"}) {
		t.Fatalf("unexpected missing list %v", got)
	}
}

package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"voxdub/internal/api"
	"voxdub/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("VoxDub", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "VoxDub:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("VoxDub", statusOK, "Running", true)
	if !strings.HasPrefix(got, statusStyles[statusOK].color) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false},
		{Name: "FFprobe", Available: true, Command: "ffprobe", Path: "/usr/bin/ffprobe"},
		{Name: "Coqui TTS", Available: false, Optional: true, Detail: "binary not found"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[ERROR] not available") {
		t.Fatalf("expected error detail first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[OK] Ready (/usr/bin/ffprobe)") {
		t.Fatalf("expected ready detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[WARN] binary not found") {
		t.Fatalf("expected optional warning, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies") || !strings.Contains(lines[3], "FFmpeg") || strings.Contains(lines[3], "Coqui") {
		t.Fatalf("expected only required binaries in summary, got %q", lines[3])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestFormatLogEventWithoutSubject(t *testing.T) {
	got := formatLogEvent(api.LogEvent{Timestamp: "not-a-time", Message: "daemon started"})
	if got != "not-a-time INFO - daemon started" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestRenderTablePadsRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("unexpected table %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/services"
)

func TestNewMirrorsJSONAlongsideConsole(t *testing.T) {
	dir := t.TempDir()
	consolePath := filepath.Join(dir, "console.log")
	jsonPath := filepath.Join(dir, "runs", logging.LogFileName)

	hub := logging.NewStreamHub(16)
	logger, err := logging.New(logging.Options{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{consolePath},
		ErrorOutputPaths: []string{consolePath},
		JSONPath:         jsonPath,
		Stream:           hub,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("daemon started", logging.String(logging.FieldEventType, "daemon_start"))
	logger.Debug("hidden")

	content, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json mirror: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one JSON line, got %q", content)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", lines[0], err)
	}
	if record["msg"] != "daemon started" || record["level"] != "info" || record[logging.FieldEventType] != "daemon_start" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}

	console, err := os.ReadFile(consolePath)
	if err != nil {
		t.Fatalf("read console log: %v", err)
	}
	if !strings.Contains(string(console), "INFO – daemon started") || bytes.HasPrefix(bytes.TrimSpace(console), []byte("{")) {
		t.Fatalf("expected console rendering, got %q", console)
	}

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected one streamed event, got %d", len(events))
	}
}

func TestTeeHandlerRespectsEachSinkLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	tee := logging.TeeHandler(
		nil,
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(tee).With("job_id", "abc").WithGroup("tts")
	logger.Debug("chunk queued", "index", 1)
	logger.Info("chunk synthesized", "index", 1)

	if strings.Contains(infoBuf.String(), "chunk queued") {
		t.Fatalf("info sink received debug record: %q", infoBuf.String())
	}
	for _, want := range []string{"chunk queued", "chunk synthesized", `"job_id":"abc"`, `"tts":{"index":1}`} {
		if !strings.Contains(debugBuf.String(), want) {
			t.Fatalf("expected %q in debug sink %q", want, debugBuf.String())
		}
	}
	if !strings.Contains(infoBuf.String(), `"job_id":"abc"`) {
		t.Fatalf("expected attrs on info sink, got %q", infoBuf.String())
	}
}

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := logging.TeeHandler(nil, nil).(logging.NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if logging.TeeHandler(nil, inner) != inner {
		t.Fatal("expected single sink returned unwrapped")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if strings.Contains(string(content), "\x1b[") {
		t.Fatalf("expected no color codes in file output, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersJobSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "pipeline")
	logger.Info("stage complete",
		logging.String(logging.FieldJobID, "3f2a9c1e-1111-2222-3333-444455556666"),
		logging.String(logging.FieldStage, "transcribe"),
		logging.Duration("stage_duration", 1500*time.Millisecond),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{"INFO [pipeline] Job 3f2a9c1e (transcribe) – stage complete", "- Duration: 1.5s"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output %q", want, text)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "invalid", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled for invalid level")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info enabled for invalid level")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-123")
	ctx = services.WithStage(ctx, "lipsync")
	ctx = services.WithProvider(ctx, "fish_speech")
	ctx = services.WithRequestID(ctx, "req-xyz")

	hub := logging.NewStreamHub(8)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{filepath.Join(t.TempDir(), "ctx.log")}, Stream: hub})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	evt := events[0]
	if evt.JobID != "job-123" || evt.Stage != "lipsync" || evt.Provider != "fish_speech" || evt.CorrelationID != "req-xyz" {
		t.Fatalf("unexpected context fields %+v", evt)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	hub := logging.NewStreamHub(8)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{filepath.Join(t.TempDir(), "warn.log")}, Stream: hub})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "translation failed; using source text", "translation_fallback",
		logging.String(logging.FieldImpact, "dub keeps the original language"),
	)

	events, _ := hub.Tail(1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	fields := events[0].Fields
	if fields[logging.FieldEventType] != "translation_fallback" {
		t.Fatalf("unexpected event type %q", fields[logging.FieldEventType])
	}
	if fields[logging.FieldErrorHint] == "" {
		t.Fatal("expected default error hint")
	}
	if fields[logging.FieldImpact] != "dub keeps the original language" {
		t.Fatalf("expected caller impact to win, got %q", fields[logging.FieldImpact])
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	keepPath := filepath.Join(dir, "fresh.log")
	for _, p := range []string{oldPath, keepPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Fatalf("expected fresh log kept: %v", err)
	}
	if got := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir}); got != 0 {
		t.Fatalf("expected retention 0 to disable pruning, got %d", got)
	}
}

func TestCleanupOldLogsMatchesAlternativesAndNestedDirs(t *testing.T) {
	dir := t.TempDir()
	past := time.Now().AddDate(0, 0, -30)
	paths := map[string]bool{
		filepath.Join(dir, "voxdub-1.log"):            true,
		filepath.Join(dir, "voxdub-1.events"):         true,
		filepath.Join(dir, "archive", "voxdub-0.log"): true,
		filepath.Join(dir, "voxdub-2.log"):            false,
		filepath.Join(dir, "notes.txt"):               false,
	}
	current := filepath.Join(dir, "voxdub-2.log")
	for p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7,
		logging.RetentionTarget{Dir: dir, Pattern: "**/voxdub-*.{log,events}", Exclude: []string{current}},
	)
	if removed != 3 {
		t.Fatalf("expected 3 removals, got %d", removed)
	}
	for p, gone := range paths {
		_, err := os.Stat(p)
		if gone != os.IsNotExist(err) {
			t.Errorf("%s: expected removed=%v, stat err=%v", p, gone, err)
		}
	}
}

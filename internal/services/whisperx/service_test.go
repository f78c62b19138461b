package whisperx_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"voxdub/internal/services"
	"voxdub/internal/services/whisperx"
)

const sampleJSON = `{
  "language": "en",
  "segments": [
    {"text": " Hello there. ", "start": 0.0, "end": 1.5, "words": [{"word": "Hello", "start": 0.0, "end": 0.6}]},
    {"text": "   ", "start": 1.5, "end": 2.0},
    {"text": "General Kenobi.", "start": 2.0, "end": 3.25}
  ]
}`

func flagValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job_audio.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeParsesJSONOutput(t *testing.T) {
	audio := writeAudio(t)
	var gotName string
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		out := filepath.Join(flagValue(args, "--output_dir"), "job_audio.json")
		return nil, os.WriteFile(out, []byte(sampleJSON), 0o644)
	}
	svc := whisperx.NewService(whisperx.Config{Model: "small"}, whisperx.WithRunner(runner))

	transcript, err := svc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotName != whisperx.UVXCommand {
		t.Fatalf("expected uvx, got %q", gotName)
	}
	if flagValue(gotArgs, "--model") != "small" || flagValue(gotArgs, "--output_format") != "json" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if flagValue(gotArgs, "--device") != whisperx.CPUDevice || slices.Contains(gotArgs, "--language") {
		t.Fatalf("expected cpu auto-detect args, got %v", gotArgs)
	}
	if transcript.Text != "Hello there. General Kenobi." {
		t.Fatalf("unexpected text %q", transcript.Text)
	}
	if transcript.Language != "en" || transcript.WordCount != 4 || len(transcript.Segments) != 2 {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
	if transcript.Duration != 3250*time.Millisecond {
		t.Fatalf("unexpected duration %s", transcript.Duration)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(audio), "whisperx-*"))
	if len(matches) != 0 {
		t.Fatalf("expected scratch output removed, found %v", matches)
	}
}

func TestTranscribeLanguageAndCUDAArgs(t *testing.T) {
	audio := writeAudio(t)
	var gotArgs []string
	runner := func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		out := filepath.Join(flagValue(args, "--output_dir"), "job_audio.json")
		return nil, os.WriteFile(out, []byte(`{"segments":[]}`), 0o644)
	}
	svc := whisperx.NewService(whisperx.Config{
		CUDAEnabled: true,
		VADMethod:   whisperx.VADMethodPyannote,
		HFToken:     "hf_x",
	}, whisperx.WithRunner(runner))

	transcript, err := svc.TranscribeLanguage(context.Background(), audio, "spa")
	if err != nil {
		t.Fatalf("TranscribeLanguage: %v", err)
	}
	if flagValue(gotArgs, "--language") != "es" || flagValue(gotArgs, "--device") != whisperx.CUDADevice {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if flagValue(gotArgs, "--hf_token") != "hf_x" || flagValue(gotArgs, "--index-url") != whisperx.CUDAIndexURL {
		t.Fatalf("expected pyannote token and cuda index, got %v", gotArgs)
	}
	if transcript.Language != "es" || transcript.Text != "" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
}

func TestTranscribeFailures(t *testing.T) {
	svc := whisperx.NewService(whisperx.Config{}, whisperx.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("loading model\nCUDA out of memory"), errors.New("exit status 1")
	}))
	_, err := svc.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	_, err = svc.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	silent := whisperx.NewService(whisperx.Config{}, whisperx.WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	}))
	_, err = silent.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected missing output to be an external tool error, got %v", err)
	}
}

func TestParseTranscriptRejectsGarbage(t *testing.T) {
	if _, err := whisperx.ParseTranscript([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := whisperx.ParseTranscript([]byte(`{"language":"en"}`)); err == nil {
		t.Fatal("expected error without segments")
	}
}

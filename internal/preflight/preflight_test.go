package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxdub/internal/testsupport"
)

func TestCheckDirectory_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectory("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectory_NotExist(t *testing.T) {
	result := CheckDirectory("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectory_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectory("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFishSpeech(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckFishSpeech(context.Background(), srv.URL+"/"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	healthy = false
	if result := CheckFishSpeech(context.Background(), srv.URL); result.Passed {
		t.Fatal("expected failure for unhealthy server")
	}
	if result := CheckFishSpeech(context.Background(), ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := CheckLLM(context.Background(), "Translation LLM", cfg.Translation)
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := RunAll(context.Background(), cfg)
	// Four data directories, the log directory, and lip sync.
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_IncludesFishSpeechWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithFishSpeechURL(srv.URL))
	found := false
	for _, r := range RunAll(context.Background(), cfg) {
		if r.Name == "Fish Speech" {
			found = true
			if !r.Passed {
				t.Errorf("Fish Speech check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected Fish Speech check in results")
	}
}

func TestCheckLipSync(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckLipSync(cfg); !result.Passed || !strings.Contains(result.Detail, "Mux") {
		t.Fatalf("expected mux mode to pass, got %+v", result)
	}

	cfg.LipSync.Mode = "wav2lip"
	cfg.LipSync.Wav2LipDir = filepath.Join(t.TempDir(), "missing")
	if result := CheckLipSync(cfg); result.Passed {
		t.Fatalf("expected missing checkout to fail, got %+v", result)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe", "uvx"))
	cfg.Media.FFmpegBinary = "ffmpeg"
	cfg.Media.FFprobeBinary = "ffprobe"
	cfg.Providers.Coqui.Binary = "clearly-not-present-tts"

	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 4 {
		t.Fatalf("mux mode should skip python, got %d statuses", len(statuses))
	}
	for _, s := range statuses[:3] {
		if !s.Available {
			t.Errorf("%s should be available: %s", s.Name, s.Detail)
		}
	}
	if statuses[3].Available || !statuses[3].Optional {
		t.Fatalf("coqui should be optional and missing, got %+v", statuses[3])
	}

	cfg.LipSync.Mode = "wav2lip"
	if got := len(CheckSystemDeps(cfg)); got != 5 {
		t.Fatalf("wav2lip mode should add python, got %d", got)
	}
}

func TestCheckFishAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if result := CheckFishAudio(cfg); !result.Passed || !strings.Contains(result.Detail, "Disabled") {
		t.Fatalf("expected disabled provider to pass, got %+v", result)
	}
	cfg.Providers.FishAudio.APIKey = "secret"
	if result := CheckFishAudio(cfg); !result.Passed || result.Detail != "API key configured" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result := CheckFishAudio(nil); result.Passed {
		t.Fatal("nil config should not pass")
	}
}

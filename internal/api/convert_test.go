package api_test

import (
	"testing"
	"time"

	"voxdub/internal/api"
	"voxdub/internal/job"
	"voxdub/internal/tts"
)

func TestFromJob(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	j := job.Job{
		ID:             "abc",
		Status:         job.StatusCompleted,
		Progress:       100,
		CurrentStep:    job.StepComplete,
		TargetLanguage: "es",
		OutputArtifact: "/data/outputs/abc_final.mp4",
		InputArtifact:  "/data/uploads/abc_a.mp4",
		CreatedAt:      start.Add(-time.Minute),
		StartedAt:      start,
		CompletedAt:    start.Add(90 * time.Second),
	}
	dto := api.FromJob(j, start.Add(time.Hour))
	if !dto.ResultAvailable || dto.Progress.Percent != 100 || dto.Progress.Step != "Complete!" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if dto.DurationSeconds != 90 {
		t.Fatalf("expected 90s duration, got %v", dto.DurationSeconds)
	}
	if dto.StartedAt != "2026-03-01T10:00:00.000Z" || dto.FailedAt != "" {
		t.Fatalf("unexpected timestamps %+v", dto)
	}

	running := api.FromJob(job.Job{ID: "x", Status: job.StatusProcessing, StartedAt: start}, start.Add(5*time.Second))
	if running.ResultAvailable || running.DurationSeconds != 5 {
		t.Fatalf("unexpected running dto %+v", running)
	}
}

func TestFromProviderStatus(t *testing.T) {
	view := api.FromProviderStatus(tts.Status{
		Descriptor: tts.Descriptor{
			Name:         tts.NameFishSpeech,
			Capabilities: tts.Capabilities(tts.CapVoiceCloning, tts.CapEmotionSynthesis),
			Languages:    []string{"en"},
		},
		Available: true,
		Preferred: true,
	})
	if view.Name != "fish_speech" || !view.Available || !view.Preferred || len(view.Capabilities) != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestLanguages(t *testing.T) {
	langs := api.Languages()
	if len(langs) != 12 || langs[0].Code != "en" {
		t.Fatalf("unexpected languages %+v", langs)
	}
}

func TestCountsMap(t *testing.T) {
	m := api.CountsMap(job.Counts{Total: 3, Queued: 1, Failed: 2})
	if m["total"] != 3 || m["queued"] != 1 || m["failed"] != 2 || m["completed"] != 0 {
		t.Fatalf("unexpected counts %v", m)
	}
}

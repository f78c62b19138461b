package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/testsupport"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	testsupport.WriteFile(t, path, 16)
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("set time: %v", err)
	}
}

func TestSweepDirInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := SweepDir(context.Background(), dir, time.Hour, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Failures) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestSweepDirRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a_audio.wav")
	recent := filepath.Join(dir, "b_audio.wav")
	active := filepath.Join(dir, "c_audio.wav")
	writeAged(t, old, 2*time.Hour)
	writeAged(t, recent, time.Minute)
	writeAged(t, active, 3*time.Hour)

	keep := map[string]struct{}{active: {}}
	result := SweepDir(context.Background(), dir, time.Hour, keep, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v", old, result.Removed)
	}
	for _, path := range []string{recent, active} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should remain: %v", path, err)
		}
	}
}

func TestSweepDirZeroAgeDisabled(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, "x.wav"), 48*time.Hour)
	if result := SweepDir(context.Background(), dir, 0, nil, nil); len(result.Removed) != 0 {
		t.Fatalf("zero age should disable cleanup, removed %v", result.Removed)
	}
}

func TestSweepDataUsesPerDirectoryAges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cleanup.TempMaxAgeHours = 1
	cfg.Cleanup.ArtifactMaxAgeDays = 7

	tempOld := filepath.Join(cfg.TempDir(), "j1_dubbed.wav")
	uploadDayOld := filepath.Join(cfg.UploadsDir(), "j2_clip.mp4")
	outputWeekOld := filepath.Join(cfg.OutputsDir(), "j3_final.mp4")
	writeAged(t, tempOld, 2*time.Hour)
	writeAged(t, uploadDayOld, 24*time.Hour)
	writeAged(t, outputWeekOld, 8*24*time.Hour)

	result := SweepData(context.Background(), cfg, nil, logging.NewNop())
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected errors: %v", result.Failures)
	}
	if len(result.Removed) != 2 {
		t.Fatalf("expected temp and week-old output removed, got %v", result.Removed)
	}
	if _, err := os.Stat(uploadDayOld); err != nil {
		t.Fatalf("day-old upload should remain: %v", err)
	}
}

func TestPolicies(t *testing.T) {
	if Policies(nil) != nil {
		t.Fatal("expected no policies without config")
	}
	cfg := testsupport.NewConfig(t)
	cfg.Cleanup.TempMaxAgeHours = 6
	cfg.Cleanup.ArtifactMaxAgeDays = 2
	policies := Policies(cfg)
	if len(policies) != 3 {
		t.Fatalf("expected 3 policies, got %+v", policies)
	}
	if policies[0].Dir != cfg.TempDir() || policies[0].MaxAge != 6*time.Hour {
		t.Fatalf("unexpected temp policy %+v", policies[0])
	}
	if policies[2].Dir != cfg.OutputsDir() || policies[2].MaxAge != 48*time.Hour {
		t.Fatalf("unexpected outputs policy %+v", policies[2])
	}
}

func TestSweepMessages(t *testing.T) {
	var sweep Sweep
	if !sweep.Clean() {
		t.Fatal("empty sweep should be clean")
	}
	sweep.fail("/data/temp/x", os.ErrPermission)
	if sweep.Clean() {
		t.Fatal("sweep with failures should not be clean")
	}
	if got := sweep.FailureMessages(); len(got) != 1 || got[0] != "/data/temp/x: permission denied" {
		t.Fatalf("unexpected messages %v", got)
	}
}

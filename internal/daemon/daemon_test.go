package daemon

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"voxdub/internal/logging"
	"voxdub/internal/tts"
)

func TestNewRequiresCollaborators(t *testing.T) {
	env := newTestEnv(t)
	if _, err := New(env.cfg, logging.NewNop(), Components{Jobs: env.jobs}); err == nil {
		t.Fatal("expected error for missing collaborators")
	}
}

func TestStartStopHoldsLock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := env.daemon.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	status := env.daemon.Status(ctx)
	if !status.Running || !strings.HasSuffix(status.LockFilePath, "voxdub.lock") {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Preferred != tts.NameAuto || len(status.Dependencies) == 0 {
		t.Fatalf("unexpected status details %+v", status)
	}

	resp, err := http.Get("http://" + status.APIAddress + "/api/health")
	if err != nil {
		t.Fatalf("health over listener: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from live listener, got %d", resp.StatusCode)
	}

	second, err := New(env.cfg, logging.NewNop(), env.daemon.c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(ctx); err == nil || !strings.Contains(err.Error(), "already running") {
		second.Stop()
		t.Fatalf("expected lock contention, got %v", err)
	}

	env.daemon.Stop()
	if env.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
	if err := second.Start(ctx); err != nil {
		t.Fatalf("lock should be free after Stop: %v", err)
	}
	second.Stop()
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	env := newTestEnv(t)
	sent, message, err := env.daemon.TestNotification(context.Background())
	if err != nil || sent {
		t.Fatalf("expected skipped notification, got sent=%v err=%v", sent, err)
	}
	if !strings.Contains(message, "not configured") {
		t.Fatalf("unexpected message %q", message)
	}
}

package voices_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxdub/internal/services"
	"voxdub/internal/voices"
)

type fakeRemote struct {
	added   []string
	deleted []string
	failAdd bool
}

func (f *fakeRemote) AddReference(_ context.Context, id, audioPath, text string) error {
	if f.failAdd {
		return services.Wrap(services.ErrExternalService, "references", "fish_speech", "server down", nil)
	}
	f.added = append(f.added, id+"|"+filepath.Base(audioPath)+"|"+text)
	return nil
}

func (f *fakeRemote) DeleteReference(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newManager(t *testing.T, maxBytes int64, opts ...voices.ManagerOption) (*voices.Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "voices")
	return voices.NewManager(openStore(t), dir, maxBytes, opts...), dir
}

func TestAddMirrorsToRemote(t *testing.T) {
	remote := &fakeRemote{}
	mgr, dir := newManager(t, 1024, voices.WithRemote(remote))
	ctx := context.Background()

	voice, err := mgr.Add(ctx, voices.AddRequest{
		ID:         "Narrator",
		Name:       "Main narrator",
		Filename:   "take 1.WAV",
		Audio:      strings.NewReader("RIFF"),
		Transcript: " hello world ",
		Language:   "EN",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if voice.ID != "narrator" || voice.Language != "en" || voice.Transcript != "hello world" || voice.SizeBytes != 4 {
		t.Fatalf("unexpected voice %+v", voice)
	}
	if voice.AudioPath != filepath.Join(dir, "narrator.wav") {
		t.Fatalf("unexpected audio path %q", voice.AudioPath)
	}
	if !voice.Registered || len(remote.added) != 1 || remote.added[0] != "narrator|narrator.wav|hello world" {
		t.Fatalf("expected remote registration, got %+v %v", voice, remote.added)
	}

	stored, err := mgr.Get(ctx, "narrator")
	if err != nil || !stored.Registered {
		t.Fatalf("expected stored registered voice, got %+v %v", stored, err)
	}
	ref, err := mgr.Lookup(ctx, "narrator")
	if err != nil || ref.AudioPath != voice.AudioPath || !ref.Registered {
		t.Fatalf("unexpected lookup %+v %v", ref, err)
	}

	if _, err := mgr.Add(ctx, voices.AddRequest{ID: "narrator", Filename: "x.wav", Audio: strings.NewReader("x")}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate to fail, got %v", err)
	}
	if data, _ := os.ReadFile(voice.AudioPath); string(data) != "RIFF" {
		t.Fatalf("duplicate add must not overwrite audio, got %q", data)
	}
}

func TestAddRemoteFailureKeepsLocalVoice(t *testing.T) {
	mgr, _ := newManager(t, 1024, voices.WithRemote(&fakeRemote{failAdd: true}))
	voice, err := mgr.Add(context.Background(), voices.AddRequest{Filename: "clip.mp3", Audio: strings.NewReader("ID3")})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if voice.Registered {
		t.Fatal("voice should not be marked registered")
	}
	if voice.ID == "" || voice.Name != voice.ID {
		t.Fatalf("expected generated id used as name, got %+v", voice)
	}
}

func TestAddValidation(t *testing.T) {
	mgr, dir := newManager(t, 8)
	ctx := context.Background()
	cases := []struct {
		name string
		req  voices.AddRequest
	}{
		{"extension", voices.AddRequest{Filename: "notes.txt", Audio: strings.NewReader("x")}},
		{"no audio", voices.AddRequest{Filename: "a.wav"}},
		{"bad id", voices.AddRequest{ID: "../etc", Filename: "a.wav", Audio: strings.NewReader("x")}},
		{"too large", voices.AddRequest{ID: "big", Filename: "a.wav", Audio: strings.NewReader("0123456789")}},
		{"empty", voices.AddRequest{ID: "empty", Filename: "a.wav", Audio: strings.NewReader("")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mgr.Add(ctx, tc.req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected uploads left files behind: %v", entries)
	}
}

func TestRemove(t *testing.T) {
	remote := &fakeRemote{}
	mgr, _ := newManager(t, 1024, voices.WithRemote(remote))
	ctx := context.Background()
	voice, err := mgr.Add(ctx, voices.AddRequest{ID: "gone", Filename: "g.flac", Audio: strings.NewReader("fLaC")})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mgr.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(voice.AudioPath); !os.IsNotExist(err) {
		t.Fatalf("expected audio removed, got %v", err)
	}
	if len(remote.deleted) != 1 || remote.deleted[0] != "gone" {
		t.Fatalf("expected remote delete, got %v", remote.deleted)
	}
	if err := mgr.Remove(ctx, "gone"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := mgr.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty catalog, got %v %v", list, err)
	}
}

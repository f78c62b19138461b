package textutil

import (
	"strings"
	"testing"
)

func TestSafeUploadName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"clip.mp4", "clip.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\videos\my clip.mov`, "my clip.mov"},
		{"we?ird<name>.mkv", "weirdname.mkv"},
		{"double..dots...mp4", "double.dots.mp4"},
		{"entrevista_año-2.mp4", "entrevista_año-2.mp4"},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SafeUploadName(tt.input); got != tt.want {
				t.Errorf("SafeUploadName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	long := strings.Repeat("a", 300) + ".mp4"
	got := SafeUploadName(long)
	if len(got) != 255 || !strings.HasSuffix(got, ".mp4") {
		t.Fatalf("expected 255 bytes ending in .mp4, got %d %q", len(got), got[len(got)-8:])
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(" Narrator Voice!"); got != "narrator_voice" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := SanitizeToken("   "); got != "unknown" {
		t.Fatalf("unexpected token %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  clip: part 1  ": "clip- part 1",
		`a/b\c*d`:          "a-b-c-d",
		`what?"<>|`:        "what",
		"":                 "",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

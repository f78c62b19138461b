package ffprobe

import (
	"slices"
	"testing"
	"time"
)

func TestParseTalkingHeadClip(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "duration": "12.480000"},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2, "duration": "12.500000"}
		],
		"format": {"filename": "clip.mp4", "duration": "12.500000", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
	}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !result.HasVideo() || !result.HasAudio() {
		t.Fatalf("expected video and audio, got %+v", result.Streams)
	}
	if got := result.Duration(); got != 12500*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	if got := result.Resolution(); got != "1280x720" {
		t.Fatalf("unexpected resolution %q", got)
	}
	audio, _ := result.First("AUDIO")
	if audio.SampleRate != "48000" || audio.Channels != 2 {
		t.Fatalf("unexpected audio stream %+v", audio)
	}
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "N/A"}, {CodecType: "audio", Duration: "4.25"}},
		Format:  Format{Duration: ""},
	}
	if got := result.Duration(); got != 4250*time.Millisecond {
		t.Fatalf("expected stream duration fallback, got %v", got)
	}
	if got := (Result{Format: Format{Duration: "bad"}}).Duration(); got != 0 {
		t.Fatalf("expected zero for unparseable duration, got %v", got)
	}
}

func TestSilentOrAudioOnlyInputs(t *testing.T) {
	silent := Result{Streams: []Stream{{CodecType: "video", Width: 640, Height: 360}}}
	if silent.HasAudio() || !silent.HasVideo() {
		t.Fatalf("unexpected stream detection for %+v", silent)
	}
	podcast := Result{Streams: []Stream{{CodecType: "audio"}}}
	if podcast.HasVideo() || podcast.Resolution() != "" {
		t.Fatalf("audio-only input should have no video, got %+v", podcast)
	}
}

func TestArgsEndOptionsBeforePath(t *testing.T) {
	args := Args("-weird.mp4")
	idx := slices.Index(args, "--")
	if idx < 0 || args[idx+1] != "-weird.mp4" || idx != len(args)-2 {
		t.Fatalf("expected path after --, got %v", args)
	}
}

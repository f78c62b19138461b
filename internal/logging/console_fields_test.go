package logging

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:               "0 B",
		512:             "512 B",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
		3 << 30:         "3.0 GiB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSelectInfoFieldsOrdersAndHides(t *testing.T) {
	attrs := []kv{
		{key: "chunk_index", value: slog.IntValue(3)},
		{key: "audio_path", value: slog.StringValue("/tmp/a.wav")},
		{key: FieldJobID, value: slog.StringValue("abc")},
		{key: "stage_duration", value: slog.DurationValue(1234567 * time.Microsecond)},
		{key: FieldProvider, value: slog.StringValue("fish_audio")},
		{key: "notes", value: slog.StringValue(strings.Repeat("x", 200))},
	}
	shown, hidden := selectInfoFields(attrs, 0, false)
	if hidden != 2 {
		t.Fatalf("expected path and long value hidden, got %d (%+v)", hidden, shown)
	}
	want := []infoField{
		{"Provider", "fish_audio"},
		{"Duration", "1.235s"},
		{"Chunk Index", "3"},
	}
	if len(shown) != len(want) {
		t.Fatalf("unexpected fields %+v", shown)
	}
	for i := range want {
		if shown[i] != want[i] {
			t.Fatalf("field %d = %+v, want %+v", i, shown[i], want[i])
		}
	}

	limited, hidden := selectInfoFields(attrs, 1, true)
	if len(limited) != 1 || limited[0].label != "Provider" || hidden != 4 {
		t.Fatalf("unexpected limited selection %+v hidden=%d", limited, hidden)
	}
}

func TestCollectFieldsNestsGroupsAndKeepsLastValue(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	record.AddAttrs(
		slog.String("status", "running"),
		slog.Group("tts", slog.Int("index", 2)),
		slog.String("status", "done"),
	)
	got := collectFields([]string{"job"}, []slog.Attr{slog.String("status", "queued")}, record)
	if len(got) != 2 {
		t.Fatalf("expected 2 fields, got %+v", got)
	}
	if got[0].key != "job.status" || got[0].value.String() != "done" {
		t.Fatalf("unexpected first field %+v", got[0])
	}
	if got[1].key != "job.tts.index" || got[1].value.Int64() != 2 {
		t.Fatalf("unexpected nested field %+v", got[1])
	}
}

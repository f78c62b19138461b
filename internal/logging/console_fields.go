package logging

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type infoField struct {
	label string
	value string
}

// infoAttrLimit caps the detail fields attached to streamed events.
const infoAttrLimit = 8

// infoOrder lists the keys surfaced first at info level, most important
// first. Unlisted keys follow in their logged order.
var infoOrder = []string{
	FieldAlert,
	FieldEventType,
	FieldProvider,
	FieldProgressPercent,
	FieldProgressMessage,
	"status",
	"target_language",
	"source_language",
	"emotion",
	"voice_id",
	"error_message",
	FieldErrorHint,
	FieldImpact,
	"error",
	"stage_duration",
	"job_duration",
	"audio_bytes",
	"output_bytes",
	"word_count",
	"segment_count",
	"translation_fallback",
	"removed",
	"reason",
}

var infoLabels = map[string]string{
	FieldAlert:             "Alert",
	FieldEventType:         "Event",
	FieldErrorHint:         "Hint",
	FieldProgressPercent:   "Progress",
	FieldProgressMessage:   "Step",
	"stage_duration":       "Duration",
	"job_duration":         "Duration",
	"target_language":      "Target",
	"source_language":      "Source",
	"voice_id":             "Voice",
	"translation_fallback": "Untranslated",
}

func infoRank(key string) int {
	if i := slices.Index(infoOrder, key); i >= 0 {
		return i
	}
	return len(infoOrder)
}

// selectInfoFields orders attrs for display and drops the noisy ones,
// returning how many were left out. limit <= 0 means unlimited;
// includeDebug keeps ids, paths and long values.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	ordered := slices.Clone(attrs)
	slices.SortStableFunc(ordered, func(a, b kv) int {
		return cmp.Compare(infoRank(a.key), infoRank(b.key))
	})

	var shown []infoField
	hidden := 0
	for _, attr := range ordered {
		switch attr.key {
		case "", FieldJobID, FieldStage, FieldComponent:
			continue
		}
		value := formatValueForKey(attr.key, attr.value)
		noisy := !includeDebug && (isDebugOnlyKey(attr.key) || tooLongForInfo(attr.key, value))
		if noisy || (limit > 0 && len(shown) >= limit) {
			hidden++
			continue
		}
		shown = append(shown, infoField{label: infoLabel(attr.key), value: value})
	}
	return shown, hidden
}

// formatValueForKey renders sizes, durations, percentages and booleans for
// people rather than parsers.
func formatValueForKey(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case slog.KindDuration:
		if durationKey(key) {
			return v.Duration().Round(time.Millisecond).String()
		}
	case slog.KindInt64:
		switch {
		case strings.HasSuffix(key, "_bytes") || key == "size":
			return FormatBytes(v.Int64())
		case strings.HasSuffix(key, "_percent"):
			return fmt.Sprintf("%d%%", v.Int64())
		}
	case slog.KindFloat64:
		if strings.HasSuffix(key, "_percent") {
			return fmt.Sprintf("%.0f%%", v.Float64())
		}
	}

	text := formatValue(v)
	if key == "error" || key == "error_message" {
		text = strings.TrimSpace(text)
		if len(text) > 200 {
			text = text[:200] + "…"
		}
	}
	return text
}

func durationKey(key string) bool {
	switch key {
	case "elapsed", "duration", "backoff":
		return true
	}
	return strings.HasSuffix(key, "_duration") || strings.HasSuffix(key, "_elapsed")
}

// FormatBytes renders n with binary unit suffixes: 512 B, 1.5 KiB, 3.2 GiB.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	units := "KMGTPE"
	i := -1
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %ciB", value, units[i])
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldCorrelationID, "command", "args", "segments":
		return true
	case "voice_id":
		return false
	}
	return strings.HasSuffix(key, "_id") || strings.Contains(key, "_path") || strings.Contains(key, "_dir")
}

func tooLongForInfo(key, value string) bool {
	switch key {
	case "error", "error_message", FieldErrorHint:
		return false
	}
	return len(value) > 120
}

func infoLabel(key string) string {
	if label, ok := infoLabels[key]; ok {
		return label
	}
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

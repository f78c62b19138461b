package ffprobe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Result is the decoded `ffprobe -show_format -show_streams` report.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one elementary stream. Numeric fields ffprobe emits as strings
// stay strings.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

// Format is the container section.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// Args returns the ffprobe arguments that produce a parseable JSON report
// for path.
func Args(path string) []string {
	return []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
}

// Parse decodes ffprobe JSON output.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// First returns the first stream of codecType ("video", "audio", ...).
func (r Result) First(codecType string) (Stream, bool) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, codecType) {
			return s, true
		}
	}
	return Stream{}, false
}

// HasVideo reports whether the container carries a video stream.
func (r Result) HasVideo() bool {
	_, ok := r.First("video")
	return ok
}

// HasAudio reports whether the container carries an audio track to dub.
func (r Result) HasAudio() bool {
	_, ok := r.First("audio")
	return ok
}

// Duration returns the container duration, falling back to the longest
// stream when the container omits it. Unparseable values count as zero.
func (r Result) Duration() time.Duration {
	secs := seconds(r.Format.Duration)
	for _, s := range r.Streams {
		secs = max(secs, seconds(s.Duration))
	}
	return time.Duration(secs * float64(time.Second))
}

// Resolution renders the first video stream as WIDTHxHEIGHT, or "" when
// there is none.
func (r Result) Resolution() string {
	v, ok := r.First("video")
	if !ok || v.Width <= 0 || v.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

func seconds(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f < 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

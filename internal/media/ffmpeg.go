package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxdub/internal/media/ffprobe"
	"voxdub/internal/services"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Config holds the ffmpeg toolchain settings.
type Config struct {
	FFmpegBinary  string
	FFprobeBinary string
	Timeout       time.Duration
}

// Tool runs ffmpeg and ffprobe.
type Tool struct {
	cfg    Config
	runner Runner
}

// New builds a Tool; empty binaries fall back to PATH lookups of ffmpeg and
// ffprobe.
func New(cfg Config) *Tool {
	if strings.TrimSpace(cfg.FFmpegBinary) == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(cfg.FFprobeBinary) == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	return &Tool{cfg: cfg, runner: ExecRunner}
}

// WithRunner swaps the command runner (tests).
func (t *Tool) WithRunner(runner Runner) *Tool {
	if runner != nil {
		t.runner = runner
	}
	return t
}

// FFmpegBinary returns the configured ffmpeg command.
func (t *Tool) FFmpegBinary() string { return t.cfg.FFmpegBinary }

// ExtractAudio writes the first audio stream of video to dest as mono 16 kHz
// PCM WAV, the format the transcriber expects.
func (t *Tool) ExtractAudio(ctx context.Context, video, dest string) error {
	if strings.TrimSpace(video) == "" || strings.TrimSpace(dest) == "" {
		return services.Wrap(services.ErrValidation, "extract", "ffmpeg", "source and destination are required", nil)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dest,
	}
	return t.ffmpeg(ctx, "extract", dest, args)
}

// MergeAudioVideo copies the video stream of video and replaces its audio with
// audio. The output ends with the shorter of the two inputs.
func (t *Tool) MergeAudioVideo(ctx context.Context, video, audio, dest string) error {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		dest,
	}
	return t.ffmpeg(ctx, "merge", dest, args)
}

// AdjustTempo rewrites src into dest with its tempo multiplied by factor.
// factor must lie within the atempo filter range of 0.5 to 2.0.
func (t *Tool) AdjustTempo(ctx context.Context, src, dest string, factor float64) error {
	if factor < 0.5 || factor > 2.0 {
		return services.Wrap(services.ErrValidation, "tempo", "ffmpeg", fmt.Sprintf("tempo factor %.2f outside 0.5-2.0", factor), nil)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-filter:a", "atempo=" + strconv.FormatFloat(factor, 'f', -1, 64),
		dest,
	}
	return t.ffmpeg(ctx, "tempo", dest, args)
}

// Probe inspects path with ffprobe.
func (t *Tool) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	output, err := t.runner(ctx, t.cfg.FFprobeBinary, ffprobe.Args(path)...)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", tail(output), err)
	}
	result, err := ffprobe.Parse(output)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "unreadable ffprobe output", err)
	}
	return result, nil
}

// ValidateVideo rejects files that have no video stream, no audio stream or
// no measurable duration.
func (t *Tool) ValidateVideo(ctx context.Context, path string) (ffprobe.Result, error) {
	result, err := t.Probe(ctx, path)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "upload", "probe", "file is not a readable video", err)
	}
	switch {
	case !result.HasVideo():
		return result, services.Wrap(services.ErrValidation, "upload", "probe", "file has no video stream", nil)
	case !result.HasAudio():
		return result, services.Wrap(services.ErrValidation, "upload", "probe", "video has no audio track to dub", nil)
	case result.Duration() <= 0:
		return result, services.Wrap(services.ErrValidation, "upload", "probe", "video duration is unknown", nil)
	}
	return result, nil
}

func (t *Tool) ffmpeg(ctx context.Context, stage, dest string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrResource, stage, "ffmpeg", "create output directory", err)
	}
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()
	output, err := t.runner(ctx, t.cfg.FFmpegBinary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrExternalTool, stage, "ffmpeg", fmt.Sprintf("timed out after %s", t.cfg.Timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, stage, "ffmpeg", tail(output), err)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, stage, "ffmpeg", fmt.Sprintf("no output written to %s", dest), err)
	}
	return nil
}

func (t *Tool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.cfg.Timeout)
}

// tail keeps the last line of tool output for error messages.
func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "command failed"
	}
	lines := strings.Split(text, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) > 300 {
		last = last[len(last)-300:]
	}
	return last
}

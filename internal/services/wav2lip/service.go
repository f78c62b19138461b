package wav2lip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"voxdub/internal/logging"
	"voxdub/internal/services"
)

// Lip-sync modes.
const (
	ModeWav2Lip = "wav2lip"
	ModeMux     = "mux"
)

const inferenceScript = "inference.py"

// Config mirrors the [lipsync] section.
type Config struct {
	Mode             string
	Dir              string
	Python           string
	Checkpoint       string
	FaceDetBatchSize int
	BatchSize        int
	ResizeFactor     int
	Crop             []int
	Box              []int
	Rotate           bool
	NoSmooth         bool
	Timeout          time.Duration
}

// Runner executes name in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Muxer swaps the audio track of a video; used in mux mode.
type Muxer interface {
	MergeAudioVideo(ctx context.Context, video, audio, dest string) error
}

// Service produces the final dubbed video.
type Service struct {
	cfg    Config
	muxer  Muxer
	runner Runner
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRunner swaps the command runner (tests).
func WithRunner(runner Runner) Option {
	return func(s *Service) {
		if runner != nil {
			s.runner = runner
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "wav2lip")
	}
}

// New builds the service. muxer is required for mux mode.
func New(cfg Config, muxer Muxer, opts ...Option) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeWav2Lip
	}
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.FaceDetBatchSize <= 0 {
		cfg.FaceDetBatchSize = 16
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.ResizeFactor <= 0 {
		cfg.ResizeFactor = 1
	}
	s := &Service{
		cfg:    cfg,
		muxer:  muxer,
		runner: execRunner,
		logger: logging.NewComponentLogger(nil, "wav2lip"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the configured mode.
func (s *Service) Mode() string { return s.cfg.Mode }

// CheckpointPath resolves the checkpoint relative to the Wav2Lip directory.
func (s *Service) CheckpointPath() string {
	if filepath.IsAbs(s.cfg.Checkpoint) {
		return s.cfg.Checkpoint
	}
	return filepath.Join(s.cfg.Dir, s.cfg.Checkpoint)
}

// Check verifies the Wav2Lip installation. Mux mode needs nothing on disk.
func (s *Service) Check() error {
	if s.cfg.Mode == ModeMux {
		if s.muxer == nil {
			return services.Wrap(services.ErrConfiguration, "lipsync", "check", "mux mode requires ffmpeg", nil)
		}
		return nil
	}
	if info, err := os.Stat(s.cfg.Dir); err != nil || !info.IsDir() {
		return services.Wrap(services.ErrResource, "lipsync", "check",
			fmt.Sprintf("Wav2Lip directory not found at %s (clone the repository or set lipsync.mode = \"mux\")", s.cfg.Dir), err)
	}
	if _, err := os.Stat(s.CheckpointPath()); err != nil {
		return services.Wrap(services.ErrResource, "lipsync", "check",
			fmt.Sprintf("Wav2Lip checkpoint not found at %s", s.CheckpointPath()), err)
	}
	if _, err := os.Stat(filepath.Join(s.cfg.Dir, inferenceScript)); err != nil {
		return services.Wrap(services.ErrResource, "lipsync", "check",
			fmt.Sprintf("Wav2Lip %s not found in %s", inferenceScript, s.cfg.Dir), err)
	}
	return nil
}

// LipSync writes out, a copy of video whose speech follows audio.
func (s *Service) LipSync(ctx context.Context, video, audio, out string) error {
	for _, input := range []string{video, audio} {
		if _, err := os.Stat(input); err != nil {
			return services.Wrap(services.ErrNotFound, "lipsync", "input", fmt.Sprintf("input not found: %s", input), err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return services.Wrap(services.ErrResource, "lipsync", "output", "create output directory", err)
	}
	if err := s.Check(); err != nil {
		return err
	}

	start := time.Now()
	logger := logging.WithContext(ctx, s.logger)
	if s.cfg.Mode == ModeMux {
		if err := s.muxer.MergeAudioVideo(ctx, video, audio, out); err != nil {
			return err
		}
		logger.Info("audio track replaced", logging.String("mode", ModeMux), logging.Duration("elapsed", time.Since(start)))
		return nil
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	output, err := s.runner(ctx, s.cfg.Dir, s.cfg.Python, s.Args(video, audio, out)...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrExternalTool, "lipsync", "wav2lip", fmt.Sprintf("timed out after %s", s.cfg.Timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "lipsync", "wav2lip", "processing failed: "+lastLine(output), err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "lipsync", "wav2lip",
			fmt.Sprintf("completed but output file not found: %s", out), err)
	}
	logger.Info("lip synchronization complete",
		logging.String("mode", ModeWav2Lip),
		logging.Int64("output_bytes", info.Size()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Args builds the inference.py argument list.
func (s *Service) Args(video, audio, out string) []string {
	args := []string{
		inferenceScript,
		"--checkpoint_path", s.CheckpointPath(),
		"--face", video,
		"--audio", audio,
		"--outfile", out,
		"--face_det_batch_size", strconv.Itoa(s.cfg.FaceDetBatchSize),
		"--wav2lip_batch_size", strconv.Itoa(s.cfg.BatchSize),
		"--resize_factor", strconv.Itoa(s.cfg.ResizeFactor),
	}
	if len(s.cfg.Crop) == 4 {
		args = append(args, "--crop")
		args = append(args, ints(s.cfg.Crop)...)
	}
	if len(s.cfg.Box) == 4 {
		args = append(args, "--box")
		args = append(args, ints(s.cfg.Box)...)
	}
	if s.cfg.Rotate {
		args = append(args, "--rotate")
	}
	if s.cfg.NoSmooth {
		args = append(args, "--nosmooth")
	}
	return args
}

func ints(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func lastLine(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "no output"
	}
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	}
	return text
}
